// Package translate implements the GoogleFallbackProvider (C7) and Transliterator (C8),
// plus a translation-memory wrapper (DOMAIN STACK) reusing internal/core/db's cache.
package translate

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fifosk/ebook-pipeline/internal/progress"
	"github.com/fifosk/ebook-pipeline/internal/text"
)

// Translator is the out-of-core collaborator (spec §6 "Translation provider"): the core
// handles retries and error annotation itself, so failures are returned, never panicked.
type Translator interface {
	Translate(ctx context.Context, sentence, sourceCode, targetCode string) (string, error)
}

// pseudoSuffixes are stripped from a language value before table lookup (e.g. "en-orig").
var pseudoSuffixes = []string{"-orig", "-original", "-src", "-source"}

// nameToCode and codeToName mirror googletrans_provider.py's bidirectional language table,
// restricted to the languages this repository's script policies and prompts reference.
var nameToCode = map[string]string{
	"english": "en", "french": "fr", "german": "de", "spanish": "es", "italian": "it",
	"portuguese": "pt", "russian": "ru", "ukrainian": "uk", "bulgarian": "bg", "greek": "el",
	"hindi": "hi", "marathi": "mr", "bengali": "bn", "gujarati": "gu", "tamil": "ta",
	"telugu": "te", "kannada": "kn", "malayalam": "ml", "punjabi": "pa", "sinhala": "si",
	"lao": "lo", "khmer": "km", "burmese": "my", "thai": "th", "georgian": "ka",
	"armenian": "hy", "arabic": "ar", "hebrew": "iw", "chinese": "zh-cn", "japanese": "ja",
	"korean": "ko", "polish": "pl", "dutch": "nl", "turkish": "tr", "vietnamese": "vi",
	"indonesian": "id", "serbian": "sr", "croatian": "hr", "czech": "cs", "slovak": "sk",
	"romanian": "ro", "urdu": "ur", "persian": "fa",
}

var codeToName = func() map[string]string {
	m := make(map[string]string, len(nameToCode))
	for name, code := range nameToCode {
		m[code] = name
	}
	return m
}()

// zhVariantCollapse groups Chinese-variant suffixes onto the two codes the googletrans
// library actually recognizes.
var zhSimplifiedHints = map[string]bool{"hans": true, "cn": true, "sg": true}
var zhTraditionalHints = map[string]bool{"hant": true, "tw": true, "hk": true, "mo": true}

// ResolveLanguageCode accepts a language name, a code, or a pseudo-suffixed code, strips a
// known pseudo-suffix, and resolves it to the provider's language code, collapsing Chinese
// variants to zh-cn/zh-tw (spec §4.5 "Language resolution").
func ResolveLanguageCode(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, suffix := range pseudoSuffixes {
		v = strings.TrimSuffix(v, suffix)
	}

	if strings.HasPrefix(v, "zh") {
		rest := strings.TrimPrefix(v, "zh")
		rest = strings.TrimPrefix(rest, "-")
		if zhTraditionalHints[rest] {
			return "zh-tw"
		}
		return "zh-cn"
	}

	if code, ok := nameToCode[v]; ok {
		return code
	}
	if _, ok := codeToName[v]; ok {
		return v
	}
	return v
}

// healthCheck is performed once per process: verifies the library/transport dependency is
// reachable, caching the outcome (spec §4.5).
type healthCheck struct {
	once     sync.Once
	healthy  bool
	checkErr error
}

var globalHealth healthCheck

// CheckHealth verifies HTTP reachability of the public translate endpoint once per
// process and caches the outcome.
func CheckHealth(client *http.Client) (bool, error) {
	globalHealth.once.Do(func() {
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequest(http.MethodGet, "https://translate.googleapis.com/translate_a/single", nil)
		if err != nil {
			globalHealth.checkErr = err
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			globalHealth.checkErr = err
			return
		}
		defer resp.Body.Close()
		globalHealth.healthy = resp.StatusCode < 500
	})
	return globalHealth.healthy, globalHealth.checkErr
}

// GoogleProvider implements Translator via the public (unofficial) Google Translate HTTP
// endpoint, matching the teacher's plain net/http adapter idiom rather than vendoring a
// Python-only translation library.
type GoogleProvider struct {
	client *http.Client
	// mu guards client. Go has no thread-locals, so one shared provider whose HTTP client
	// pools its own connections stands in for googletrans_provider.py's thread-local
	// translator pattern.
	mu sync.Mutex
}

// NewGoogleProvider constructs a GoogleProvider, running the one-time health check.
func NewGoogleProvider() *GoogleProvider {
	client := &http.Client{Timeout: 15 * time.Second}
	CheckHealth(client)
	return &GoogleProvider{client: client}
}

// Translate performs up to 5 attempts with a 1-second inter-attempt pause and returns a
// structured failure annotation as text on exhaustion (spec §4.5). It reports nothing to a
// progress tracker; TranslateTracked does.
func (g *GoogleProvider) Translate(ctx context.Context, sentence, sourceLang, targetLang string) (string, error) {
	const maxAttempts = 5
	source := ResolveLanguageCode(sourceLang)
	target := ResolveLanguageCode(targetLang)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := g.translateOnce(ctx, sentence, source, target)
		if err == nil && result != "" && !text.IsPlaceholderTranslation(result) {
			return result, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errEmptyOrPlaceholder
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return "Retry failed for googletrans after 5 attempts: " + lastErr.Error(), lastErr
}

// TranslateTracked is Translate with progress reporting of every retry, matching spec
// §4.5's "Every retry is reported to the progress tracker."
func (g *GoogleProvider) TranslateTracked(ctx context.Context, sentence, sourceLang, targetLang string, tracker *progress.Tracker) (string, error) {
	const maxAttempts = 5
	source := ResolveLanguageCode(sourceLang)
	target := ResolveLanguageCode(targetLang)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := g.translateOnce(ctx, sentence, source, target)
		if err == nil && result != "" && !text.IsPlaceholderTranslation(result) {
			return result, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = errEmptyOrPlaceholder
		}
		if tracker != nil {
			tracker.RecordRetry("googletrans", lastErr.Error())
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return "Retry failed for googletrans after 5 attempts: " + lastErr.Error(), lastErr
}

var errEmptyOrPlaceholder = errEmpty{}

type errEmpty struct{}

func (errEmpty) Error() string { return "empty or placeholder response" }

func (g *GoogleProvider) translateOnce(ctx context.Context, sentence, source, target string) (string, error) {
	g.mu.Lock()
	client := g.client
	g.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://translate.googleapis.com/translate_a/single", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", sentence)
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errHTTPStatus(resp.StatusCode)
	}
	return decodeGoogleTranslateBody(resp.Body)
}

type errHTTPStatus int

func (e errHTTPStatus) Error() string { return "unexpected HTTP status" }
