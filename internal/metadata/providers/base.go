// Package providers implements the concrete metadata.Client adapters (spec §4.13 "Lookup
// algorithm"), generalizing original_source/modules/services/metadata/clients/*.py's
// requests.Session-backed clients into Go's net/http idiom, matching internal/core/ai's
// http.Client-per-adapter shape.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// httpClient is the shared GET-JSON helper every provider embeds, grounded on
// clients/base.py's BaseMetadataClient._get.
type httpClient struct {
	client  *http.Client
	apiKey  string
	headers map[string]string
}

func newHTTPClient(timeout time.Duration) httpClient {
	return httpClient{client: &http.Client{Timeout: timeout}}
}

// getJSON issues a GET request and decodes a 200 response into v. Any transport error,
// non-200 status, or decode failure is returned as an error; the Lookup implementations
// return it with a nil Result, and metadata.Pipeline logs it and tries the next provider.
func (h httpClient) getJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
