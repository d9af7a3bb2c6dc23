package process

import (
	"os"
	"strings"
)

// forcedEnv keeps the child non-interactive and free of colour codes.
var forcedEnv = []string{
	"CI=true",
	"TERM=dumb",
	"NO_COLOR=1",
	"FORCE_COLOR=0",
}

// Environ returns the parent environment with the non-interactive settings
// forced and extra ("KEY=VALUE") applied last. Later keys replace earlier ones.
func Environ(extra ...string) []string {
	return mergeEnv(os.Environ(), forcedEnv, extra)
}

func mergeEnv(layers ...[]string) []string {
	index := make(map[string]int)
	var out []string
	for _, layer := range layers {
		for _, kv := range layer {
			key, _, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				continue
			}
			if i, seen := index[key]; seen {
				out[i] = kv
				continue
			}
			index[key] = len(out)
			out = append(out, kv)
		}
	}
	return out
}

// Lookup returns the value of key in env, honouring last-wins order.
func Lookup(env []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):], true
		}
	}
	return "", false
}
