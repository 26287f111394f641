package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/steward/internal/sensor"
)

const defaultHTTPTimeout = 10 * time.Second

// Jolokia reads JMX attributes through the Jolokia agent's read endpoint.
// The descriptor's Target is the MBean name, Attribute the attribute name.
type Jolokia struct {
	baseURL    string
	httpClient *http.Client
}

// NewJolokia creates a Jolokia source for an agent at baseURL, for example
// "http://10.0.0.5:8778".
func NewJolokia(baseURL string, client *http.Client) *Jolokia {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Jolokia{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

type jolokiaResponse struct {
	Status int             `json:"status"`
	Value  json.RawMessage `json:"value"`
	Error  string          `json:"error"`
}

// readURL escapes the MBean the way Jolokia expects in GET requests: "!" as
// "!!" and "/" as "!/".
func (j *Jolokia) readURL(d sensor.Descriptor) string {
	escape := strings.NewReplacer("!", "!!", "/", "!/")
	u := j.baseURL + "/jolokia/read/" + escape.Replace(d.Target)
	if d.Attribute != "" {
		u += "/" + escape.Replace(d.Attribute)
	}
	return u
}

// Fetch implements sensor.Fetcher.
func (j *Jolokia) Fetch(ctx context.Context, d sensor.Descriptor) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.readURL(d), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jolokia request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jolokia read %s: %w", d, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("jolokia read %s: %w", d, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jolokia read %s: HTTP %d", d, resp.StatusCode)
	}

	var jr jolokiaResponse
	if err := json.Unmarshal(body, &jr); err != nil {
		return nil, fmt.Errorf("jolokia read %s: invalid response: %w", d, err)
	}
	if jr.Status != http.StatusOK {
		return nil, fmt.Errorf("jolokia read %s: status %d: %s", d, jr.Status, jr.Error)
	}

	return decodeJSONValue(jr.Value)
}

func decodeJSONValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	return normalizeNumber(v), nil
}

// normalizeNumber turns json.Number into int64 when integral and float64
// otherwise, so transforms see plain Go numbers.
func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
