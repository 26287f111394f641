package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/giantswarm/steward/internal/sensor"
)

// HTTPJSON issues GET requests against a base URL. The descriptor's Target
// is the path, Attribute a dot-separated path into the JSON response. An
// empty Attribute turns the fetch into a liveness check returning true for
// any 2xx response.
type HTTPJSON struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPJSON creates an HTTPJSON source.
func NewHTTPJSON(baseURL string, client *http.Client) *HTTPJSON {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPJSON{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Fetch implements sensor.Fetcher.
func (h *HTTPJSON) Fetch(ctx context.Context, d sensor.Descriptor) (any, error) {
	path := d.Target
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode)
	}
	if d.Attribute == "" {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}

	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("GET %s: invalid JSON: %w", path, err)
	}

	v, err := lookupPath(doc, d.Attribute)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return normalizeNumber(v), nil
}

func lookupPath(doc any, path string) (any, error) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: parent is not an object", key)
		}
		if cur, ok = obj[key]; !ok {
			return nil, fmt.Errorf("field %q not present", path)
		}
	}
	return cur, nil
}
