package reload

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	tests := []struct {
		domain Domain
		want   string
	}{
		{domain: Automation, want: "/services/automation/reload"},
		{domain: InputBoolean, want: "/services/input_boolean/reload"},
		{domain: Schedule, want: "/services/schedule/reload"},
		{domain: Core, want: "/services/homeassistant/reload_core_config"},
	}
	for _, tc := range tests {
		t.Run(string(tc.domain), func(t *testing.T) {
			got, ok := Path(tc.domain)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPath_Unknown(t *testing.T) {
	_, ok := Path(Domain("light"))
	assert.False(t, ok)
}

func TestDomains_AllResolvable(t *testing.T) {
	ds := Domains()
	require.Len(t, ds, 17)
	assert.True(t, sort.SliceIsSorted(ds, func(i, j int) bool { return ds[i] < ds[j] }))
	for _, d := range ds {
		_, ok := Path(d)
		assert.True(t, ok, "domain %q has no reload path", d)
	}
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("script")
	require.True(t, ok)
	assert.Equal(t, Script, d)

	for _, raw := range []string{"", "Script", "homeassistant", "all"} {
		_, ok := Lookup(raw)
		assert.False(t, ok, "Lookup(%q) should fail", raw)
	}
}
