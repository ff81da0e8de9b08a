package manifest

import (
	"reflect"
	"sort"
)

// ExtractVersion finds the published version in a decoded manifest graph.
//
// A top-level string "version" wins, then "manifest.version". Otherwise the
// graph is searched depth-first for the first string-valued "version" key.
// Object keys are visited in sorted order so a graph with several version
// fields always yields the same one. Containers already visited are skipped,
// so self-referential graphs terminate. It returns "" when no version is
// found.
func ExtractVersion(doc any) string {
	obj, ok := doc.(map[string]any)
	if ok {
		if v, ok := obj["version"].(string); ok {
			return v
		}
		if m, ok := obj["manifest"].(map[string]any); ok {
			if v, ok := m["version"].(string); ok {
				return v
			}
		}
	}
	return deepVersion(doc)
}

type visitKey struct {
	ptr uintptr
	len int
}

func deepVersion(doc any) string {
	seen := make(map[visitKey]bool)
	stack := []any{doc}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch c := cur.(type) {
		case map[string]any:
			key := visitKey{ptr: reflect.ValueOf(c).Pointer()}
			if c == nil || seen[key] {
				continue
			}
			seen[key] = true

			if v, ok := c["version"].(string); ok {
				return v
			}

			keys := make([]string, 0, len(c))
			for k := range c {
				keys = append(keys, k)
			}
			// Reverse order onto the stack so the smallest key pops first.
			sort.Sort(sort.Reverse(sort.StringSlice(keys)))
			for _, k := range keys {
				if isContainer(c[k]) {
					stack = append(stack, c[k])
				}
			}

		case []any:
			if len(c) == 0 {
				continue
			}
			key := visitKey{ptr: reflect.ValueOf(c).Pointer(), len: len(c)}
			if seen[key] {
				continue
			}
			seen[key] = true

			for i := len(c) - 1; i >= 0; i-- {
				if isContainer(c[i]) {
					stack = append(stack, c[i])
				}
			}
		}
	}
	return ""
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}
