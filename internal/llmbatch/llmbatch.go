// Package llmbatch implements the LLMBatchClient (C6): JSON batch request construction,
// the LLMClient transport contract it drives, tolerant response parsing, and bounded
// request-level retries with a short fixed delay between attempts.
package llmbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one turn of the chat-completion request the core requires of LLMClient.
type Message struct {
	Role    string `json:"role"` // "system" | "user"
	Content string `json:"content"`
}

// ChatResponse is the transport's reply: raw text content, no implicit structure.
type ChatResponse struct {
	Content string
}

// Client is the single blocking call the core requires of the LLM transport (spec §6).
// Timeouts are absolute per call; no implicit retries happen at this layer.
type Client interface {
	Chat(ctx context.Context, model string, messages []Message, timeout time.Duration) (ChatResponse, error)
}

// Item is one sentence submitted in a batch request.
type Item struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ResponseItem is one parsed translation/transliteration result, keyed back to Item.ID.
type ResponseItem struct {
	ID              int
	Translation     string
	Transliteration string
	HasTransliteration bool
}

// BatchPayload is the parsed, validated form of a model's batch response.
type BatchPayload struct {
	Items []ResponseItem
}

// BatchResponse is RequestBatch's result.
type BatchResponse struct {
	Payload *BatchPayload
	RawText string
	Err     error
	Elapsed time.Duration
}

// Validator is run against a successfully-JSON-decoded payload; returning false causes a
// retry exactly as a transport/decode failure would.
type Validator func(BatchPayload) bool

// RequiresNonEmptyItems is the validator the engine uses for its batched translation path
// (spec §4.9.3: "a validator that requires a non-empty parsed items list").
func RequiresNonEmptyItems(p BatchPayload) bool { return len(p.Items) > 0 }

const requestDelay = 150 * time.Millisecond

// BatchClient builds JSON batch payloads, invokes Client, and retries on transport or
// decode failure up to maxAttempts times with a short fixed delay (spec §4.9.4:
// "Request-level... max_attempts = 4").
type BatchClient struct {
	Transport    Client
	Model        string
	DebugDir     string // if non-empty, write request/response artifacts here
	threadHint   string // overrides the "thread identifier" embedded in debug filenames, for tests
}

// New constructs a BatchClient bound to transport/model.
func New(transport Client, model string) *BatchClient {
	return &BatchClient{Transport: transport, Model: model}
}

// RequestBatch serializes items to a single user message, then calls Transport for up to
// maxAttempts attempts, retrying on malformed JSON or validator rejection. It never
// retries content-policy rejections found by a higher-level validator beyond what
// Validator itself reports — content-level retries are the engine's own (§4.9.4) concern.
func (c *BatchClient) RequestBatch(ctx context.Context, systemPrompt string, items []Item,
	timeout time.Duration, maxAttempts int, validator Validator, targetLanguage string) BatchResponse {

	start := time.Now()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	payloadJSON, err := json.Marshal(items)
	if err != nil {
		return BatchResponse{Err: fmt.Errorf("llmbatch: marshal items: %w", err), Elapsed: time.Since(start)}
	}
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: string(payloadJSON)},
	}

	var lastErr error
	var lastRaw string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.Transport.Chat(ctx, c.Model, messages, timeout)
		attemptElapsed := time.Since(start)
		if err != nil {
			lastErr = fmt.Errorf("llmbatch: attempt %d: transport: %w", attempt, err)
			c.writeDebugArtifact(items, targetLanguage, attempt, resp.Content, lastErr, attemptElapsed)
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return BatchResponse{Err: ctx.Err(), Elapsed: time.Since(start)}
				case <-time.After(requestDelay):
				}
			}
			continue
		}
		lastRaw = resp.Content
		payload, perr := ParseResponse(resp.Content, items)
		if perr != nil {
			lastErr = fmt.Errorf("llmbatch: attempt %d: %w", attempt, perr)
			c.writeDebugArtifact(items, targetLanguage, attempt, resp.Content, lastErr, attemptElapsed)
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return BatchResponse{Err: ctx.Err(), Elapsed: time.Since(start)}
				case <-time.After(requestDelay):
				}
			}
			continue
		}
		if validator != nil && !validator(payload) {
			lastErr = fmt.Errorf("llmbatch: attempt %d: validator rejected payload", attempt)
			c.writeDebugArtifact(items, targetLanguage, attempt, resp.Content, lastErr, attemptElapsed)
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return BatchResponse{Err: ctx.Err(), Elapsed: time.Since(start)}
				case <-time.After(requestDelay):
				}
			}
			continue
		}
		c.writeDebugArtifact(items, targetLanguage, attempt, resp.Content, nil, attemptElapsed)
		return BatchResponse{Payload: &payload, RawText: resp.Content, Elapsed: time.Since(start)}
	}
	return BatchResponse{Err: lastErr, RawText: lastRaw, Elapsed: time.Since(start)}
}

// rawEnvelope tolerates either {"items":[...]} or a bare top-level list.
type rawEnvelope struct {
	Items []rawItem `json:"items"`
}

type rawItem struct {
	ID              json.RawMessage `json:"id"`
	Index           json.RawMessage `json:"index"`
	SentenceID      json.RawMessage `json:"sentence_id"`
	Sentence        json.RawMessage `json:"sentence"`
	SentenceNumber  json.RawMessage `json:"sentence_number"`
	Translation     string          `json:"translation"`
	Transliteration *string         `json:"transliteration"`
}

// ParseResponse tolerates items-key-present-or-bare-list, ids extractable from any of
// id|index|sentence_id|sentence|sentence_number (int or numeric string), positional
// fallback when ids are missing/unparseable and lengths match, and duplicate ids
// collapsing to the first occurrence (spec §4.4 "Response parsing tolerates").
func ParseResponse(raw string, request []Item) (BatchPayload, error) {
	trimmed := strings.TrimSpace(stripFences(raw))
	if trimmed == "" {
		return BatchPayload{}, fmt.Errorf("empty response")
	}

	var items []rawItem
	var env rawEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.Items != nil {
		items = env.Items
	} else {
		var bare []rawItem
		if err := json.Unmarshal([]byte(trimmed), &bare); err != nil {
			return BatchPayload{}, fmt.Errorf("not valid JSON: %w", err)
		}
		items = bare
	}

	seen := map[int]bool{}
	var out []ResponseItem
	unresolved := 0
	for i, it := range items {
		id, ok := extractID(it)
		if !ok {
			if len(items) == len(request) {
				id = request[i].ID
				ok = true
			} else {
				unresolved++
				continue
			}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ri := ResponseItem{ID: id, Translation: it.Translation}
		if it.Transliteration != nil {
			ri.Transliteration = *it.Transliteration
			ri.HasTransliteration = true
		}
		out = append(out, ri)
	}
	if len(out) == 0 && len(items) > 0 {
		return BatchPayload{}, fmt.Errorf("no item ids could be resolved (%d unresolved)", unresolved)
	}
	return BatchPayload{Items: out}, nil
}

func extractID(it rawItem) (int, bool) {
	for _, raw := range []json.RawMessage{it.ID, it.Index, it.SentenceID, it.Sentence, it.SentenceNumber} {
		if len(raw) == 0 {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```json")
		t = strings.TrimPrefix(t, "```")
		t = strings.TrimSuffix(t, "```")
	}
	return t
}

// writeDebugArtifact persists the full request/response, including elapsed time and
// attempt number, for post-hoc inspection. Filenames embed a UTC timestamp, id range,
// target language, attempt, and a thread/goroutine-correlating identifier (spec §4.4).
func (c *BatchClient) writeDebugArtifact(items []Item, targetLanguage string, attempt int, rawResponse string, callErr error, elapsed time.Duration) {
	if c.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(c.DebugDir, 0o755); err != nil {
		return
	}
	lo, hi := idRange(items)
	thread := c.threadHint
	if thread == "" {
		thread = uuid.NewString()[:8]
	}
	name := fmt.Sprintf("%s_%d-%d_%s_attempt%d_%s.json",
		time.Now().UTC().Format("20060102T150405.000Z"), lo, hi, sanitize(targetLanguage), attempt, thread)

	artifact := struct {
		Items    []Item        `json:"items"`
		Response string        `json:"response"`
		Error    string        `json:"error,omitempty"`
		Elapsed  string        `json:"elapsed"`
		Attempt  int           `json:"attempt"`
	}{Items: items, Response: rawResponse, Elapsed: elapsed.String(), Attempt: attempt}
	if callErr != nil {
		artifact.Error = callErr.Error()
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(c.DebugDir, name), data, 0o644)
}

func idRange(items []Item) (int, int) {
	if len(items) == 0 {
		return 0, 0
	}
	lo, hi := items[0].ID, items[0].ID
	for _, it := range items[1:] {
		if it.ID < lo {
			lo = it.ID
		}
		if it.ID > hi {
			hi = it.ID
		}
	}
	return lo, hi
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
