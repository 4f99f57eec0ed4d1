package meta

import (
	"os"
	"strings"
)

const envPrefix = "${env."

// ExpandEnv replaces ${env.KEY} with the value of environment variable KEY, using
// lookup when supplied. Keys must consist of letters, digits or '_'; anything else
// is left as literal text. Unset variables expand to empty text.
func ExpandEnv(value string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var b strings.Builder
	for {
		idx := strings.Index(value, envPrefix)
		if idx < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:idx])
		rest := value[idx+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[idx:])
			return b.String()
		}
		key := rest[:end]
		if !isEnvKey(key) {
			b.WriteString(envPrefix)
			value = rest
			continue
		}
		envValue, _ := lookup(key)
		b.WriteString(envValue)
		value = rest[end+1:]
	}
}

func isEnvKey(key string) bool {
	for i := 0; i < len(key); i++ {
		c := key[i]
		if !(c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}
