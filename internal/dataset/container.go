package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Container is the hierarchical keyed store a recording lives in. Paths are
// slash separated without a leading slash ("state/id"); the root group is "".
type Container interface {
	// Keys lists the immediate children of group, sorted.
	Keys(group string) ([]string, error)
	// Float64s returns a numeric array flattened in row-major order.
	Float64s(path string) ([]float64, error)
	// String returns a scalar text value.
	String(path string) (string, error)
	Close() error
}

// cleanPath normalises "/state/id/" and "state/id" to the same key.
func cleanPath(p string) string {
	return strings.Trim(p, "/")
}

// joinPath joins a group and a child name.
func joinPath(group, name string) string {
	group = cleanPath(group)
	if group == "" {
		return cleanPath(name)
	}
	return group + "/" + cleanPath(name)
}

// MemoryContainer is an in-memory Container. Groups are implied by the
// array and string paths it holds.
type MemoryContainer struct {
	Arrays  map[string][]float64
	Strings map[string]string
}

// NewMemoryContainer returns an empty MemoryContainer.
func NewMemoryContainer() *MemoryContainer {
	return &MemoryContainer{
		Arrays:  make(map[string][]float64),
		Strings: make(map[string]string),
	}
}

// Keys implements Container.
func (m *MemoryContainer) Keys(group string) ([]string, error) {
	group = cleanPath(group)
	prefix := ""
	if group != "" {
		prefix = group + "/"
	}

	seen := make(map[string]struct{})
	visit := func(p string) {
		p = cleanPath(p)
		if !strings.HasPrefix(p, prefix) || p == group {
			return
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = struct{}{}
	}
	for p := range m.Arrays {
		visit(p)
	}
	for p := range m.Strings {
		visit(p)
	}

	if len(seen) == 0 && group != "" {
		return nil, fmt.Errorf("%w: group %q", ErrPathNotFound, group)
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Float64s implements Container. The returned slice is shared, not copied.
func (m *MemoryContainer) Float64s(path string) ([]float64, error) {
	data, ok := m.Arrays[cleanPath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: array %q", ErrPathNotFound, path)
	}
	return data, nil
}

// String implements Container.
func (m *MemoryContainer) String(path string) (string, error) {
	s, ok := m.Strings[cleanPath(path)]
	if !ok {
		return "", fmt.Errorf("%w: string %q", ErrPathNotFound, path)
	}
	return s, nil
}

// Close implements Container.
func (m *MemoryContainer) Close() error { return nil }
