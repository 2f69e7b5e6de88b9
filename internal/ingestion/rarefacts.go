package ingestion

import (
	"strings"

	"github.com/Benny93/contexter-go/internal/config"
)

// factTokens returns the flag and path tokens to look for in file contents.
func factTokens(rf config.RareFacts) []string {
	tokens := make([]string, 0, len(rf.Flags)+len(rf.Paths))
	tokens = append(tokens, rf.Flags...)
	tokens = append(tokens, rf.Paths...)
	return tokens
}

// foundTokens reports which tokens occur in content.
func foundTokens(content []byte, tokens []string) []string {
	var found []string
	text := string(content)
	for _, t := range tokens {
		if t != "" && strings.Contains(text, t) {
			found = append(found, t)
		}
	}
	return found
}

// missingFacts lists the rare facts that could not be confirmed, as
// "env:NAME", "flag:TOKEN" or "path:TOKEN".
func missingFacts(rf config.RareFacts, lookupEnv func(string) (string, bool), found map[string]bool) []string {
	var missing []string
	for _, name := range rf.Env {
		if _, ok := lookupEnv(name); !ok {
			missing = append(missing, "env:"+name)
		}
	}
	for _, flag := range rf.Flags {
		if !found[flag] {
			missing = append(missing, "flag:"+flag)
		}
	}
	for _, p := range rf.Paths {
		if !found[p] {
			missing = append(missing, "path:"+p)
		}
	}
	return missing
}
