package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameRenderer(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{name: "default", template: "", want: "search-1-7"},
		{name: "padded", template: `{{ .cluster }}-{{ printf "%03d" .index }}`, want: "search-1-007"},
		{name: "sprig functions", template: `{{ .type | upper }}-{{ .index }}`, want: "ELASTICSEARCH-7"},
		{name: "unknown key", template: `{{ .region }}-{{ .index }}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newNameRenderer(tt.template)
			require.NoError(t, err)

			got, err := r.render("search-1", "elasticsearch", 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameRenderer_Validate(t *testing.T) {
	_, err := newNameRenderer("{{ .cluster")
	assert.Error(t, err)

	r, err := newNameRenderer("{{ .cluster }}")
	require.NoError(t, err)
	err = r.validate("c", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must depend on .index")

	r, err = newNameRenderer(DefaultNameTemplate)
	require.NoError(t, err)
	assert.NoError(t, r.validate("c", "t"))
}
