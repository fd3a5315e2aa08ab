package translate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// decodeGoogleTranslateBody parses the translate_a/single endpoint's response, a deeply
// nested untyped JSON array whose first element is itself an array of [translatedChunk,
// originalChunk, ...] tuples. Concatenating the translated chunks yields the full
// translation.
func decodeGoogleTranslateBody(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	var top []any
	if err := json.Unmarshal(raw, &top); err != nil {
		return "", fmt.Errorf("decode googletrans response: %w", err)
	}
	if len(top) == 0 {
		return "", nil
	}
	sentences, ok := top[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected googletrans response shape")
	}
	var b strings.Builder
	for _, chunk := range sentences {
		tuple, ok := chunk.([]any)
		if !ok || len(tuple) == 0 {
			continue
		}
		piece, ok := tuple[0].(string)
		if !ok {
			continue
		}
		b.WriteString(piece)
	}
	return b.String(), nil
}
