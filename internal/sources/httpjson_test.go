package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/steward/internal/sensor"
)

func newHealthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/_cluster/health":
			_, _ = w.Write([]byte(`{"cluster_name":"search-1","status":"green","number_of_nodes":3,"shards":{"active":1.5}}`))
		case "/":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPJSON_Fetch(t *testing.T) {
	src := NewHTTPJSON(newHealthServer(t).URL, nil)

	tests := []struct {
		name    string
		desc    sensor.Descriptor
		want    any
		wantErr string
	}{
		{name: "string field", desc: sensor.Descriptor{Target: "/_cluster/health", Attribute: "status"}, want: "green"},
		{name: "integer field", desc: sensor.Descriptor{Target: "_cluster/health", Attribute: "number_of_nodes"}, want: int64(3)},
		{name: "nested field", desc: sensor.Descriptor{Target: "/_cluster/health", Attribute: "shards.active"}, want: 1.5},
		{name: "liveness", desc: sensor.Descriptor{Target: "/"}, want: true},
		{name: "missing field", desc: sensor.Descriptor{Target: "/_cluster/health", Attribute: "nope"}, wantErr: "not present"},
		{name: "unavailable", desc: sensor.Descriptor{Target: "/down"}, wantErr: "HTTP 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := src.Fetch(context.Background(), tt.desc)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}
