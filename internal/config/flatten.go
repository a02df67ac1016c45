package config

import "strings"

// Keys whose values are credentials. Masked in listings.
var secretKeys = map[string]bool{
	"llm.api_key":    true,
	"telegram.token": true,
}

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns a nested map into dot-path keys, e.g.
// {"memory": {"recent_window": 10}} becomes {"memory.recent_window": 10}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(path string, v any)
	walk = func(path string, v any) {
		child, ok := v.(map[string]any)
		if !ok {
			out[path] = v
			return
		}
		for k, cv := range child {
			p := k
			if path != "" {
				p = path + "." + k
			}
			walk(p, cv)
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten: dot-path keys back into nested maps.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		node := out
		parts := strings.Split(key, ".")
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets copies the flat map, replacing each secret value with "***"
// plus its last 4 characters. Empty and non-string values pass through.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if !secretKeys[k] {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		tail := s
		if len(s) > 4 {
			tail = s[len(s)-4:]
		}
		out[k] = "***" + tail
	}
	return out
}
