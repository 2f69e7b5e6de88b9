package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Benny93/contexter-go/internal/config"
)

func TestRareFacts(t *testing.T) {
	t.Parallel()

	rf := config.RareFacts{
		Env:   []string{"HOME_DIR", "API_URL"},
		Flags: []string{"--verbose", "--dry-run"},
		Paths: []string{"etc/app.conf"},
	}

	tokens := factTokens(rf)
	assert.Equal(t, []string{"--verbose", "--dry-run", "etc/app.conf"}, tokens)

	found := map[string]bool{}
	for _, tok := range foundTokens([]byte("run with --dry-run and read etc/app.conf"), tokens) {
		found[tok] = true
	}
	assert.Equal(t, map[string]bool{"--dry-run": true, "etc/app.conf": true}, found)

	env := map[string]string{"API_URL": "http://localhost"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	assert.Equal(t, []string{"env:HOME_DIR", "flag:--verbose"}, missingFacts(rf, lookup, found))
}

func TestFoundTokens_SkipsEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, foundTokens([]byte("anything"), []string{""}))
	assert.Empty(t, factTokens(config.RareFacts{}))
}
