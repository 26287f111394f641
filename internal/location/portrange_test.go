package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRange(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		first    int
		contains []int
		excludes []int
		wantErr  bool
	}{
		{name: "open range", input: "31880+", first: 31880, contains: []int{31880, 65535}, excludes: []int{31879}},
		{name: "closed range", input: "8080-8082", first: 8080, contains: []int{8081, 8082}, excludes: []int{8083}},
		{name: "single port", input: "5432", first: 5432, contains: []int{5432}, excludes: []int{5433}},
		{name: "list", input: "9200, 9300-9301", first: 9200, contains: []int{9200, 9301}, excludes: []int{9201}},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "http", wantErr: true},
		{name: "out of range", input: "70000", wantErr: true},
		{name: "reversed", input: "9000-8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr, err := ParsePortRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.first, pr.First())
			for _, p := range tt.contains {
				assert.True(t, pr.Contains(p), "expected %d in %s", p, pr)
			}
			for _, p := range tt.excludes {
				assert.False(t, pr.Contains(p), "expected %d not in %s", p, pr)
			}
		})
	}
}

func TestPortRange_EachStops(t *testing.T) {
	var seen []int
	MustParsePortRange("10-20").Each(func(p int) bool {
		seen = append(seen, p)
		return len(seen) < 3
	})
	assert.Equal(t, []int{10, 11, 12}, seen)
}
