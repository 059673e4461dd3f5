package settings

import "strings"

// splitPath turns a dotted path such as "api_keys.openai" into its segments.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// getPath walks a nested map[string]any following dotted-path segments.
func getPath(tree map[string]any, segments []string) (any, bool) {
	cur := any(tree)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// setPath writes value at the dotted path, creating intermediate maps as needed.
func setPath(tree map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	cur := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}

// deletePath removes the value at the dotted path, if present. It does not
// prune now-empty intermediate maps; a sparse tree is harmless.
func deletePath(tree map[string]any, segments []string) {
	if len(segments) == 0 {
		return
	}
	cur := tree
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segments[len(segments)-1])
}
