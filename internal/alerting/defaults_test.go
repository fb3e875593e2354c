package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_IsValid(t *testing.T) {
	t.Parallel()

	cat := DefaultCatalog()
	require.NoError(t, ValidateCatalog(cat, DefaultRegistry()))

	reg := DefaultRegistry()
	assert.Len(t, cat.Rules, len(reg.Keys()), "one default rule per built-in trigger")
	for _, key := range reg.Keys() {
		found := false
		for _, r := range cat.Rules {
			found = found || r.Key == key
		}
		assert.True(t, found, "no default rule for %s", key)
	}
}

func TestDefaultRules_DistinctPriorities(t *testing.T) {
	t.Parallel()

	seen := make(map[int]string)
	for _, r := range DefaultRules() {
		prev, dup := seen[r.Priority]
		assert.False(t, dup, "%s and %s share priority %d", prev, r.Key, r.Priority)
		seen[r.Priority] = r.Key
	}
}

func TestDefaultConfig_BacksTriggerParams(t *testing.T) {
	t.Parallel()

	keys := make(map[string]bool)
	for _, c := range DefaultConfig() {
		keys[c.Key] = true
	}
	for _, info := range DefaultRegistry().Describe() {
		for _, p := range info.Params {
			if p.ConfigKey != "" {
				assert.True(t, keys[p.ConfigKey], "no default config for %s", p.ConfigKey)
			}
		}
	}
}
