// Package catalog provides a string-keyed registry of named configurations,
// grouped by an arbitrary label (typically the algorithm a scene targets).
//
// A Catalog is constructed explicitly and passed by reference. Tests call
// Reset (or construct a fresh catalog) to avoid leaking entries between cases.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// NotFoundError is returned by Lookup for a missing group or name.
type NotFoundError struct {
	Group     string
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("unknown group %q (available: %v)", e.Group, e.Available)
	}
	return fmt.Sprintf("no entry %q in group %q (available: %v)", e.Name, e.Group, e.Available)
}

// DuplicateError is returned when a name is registered twice in one group.
type DuplicateError struct {
	Group string
	Name  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("entry %q already registered in group %q", e.Name, e.Group)
}

// Catalog holds named values of type T in groups.
type Catalog[T any] struct {
	mu     sync.RWMutex
	groups map[string]map[string]T
}

// New returns an empty catalog.
func New[T any]() *Catalog[T] {
	return &Catalog[T]{groups: make(map[string]map[string]T)}
}

// Register adds value under group/name.
func (c *Catalog[T]) Register(group, name string, value T) error {
	if name == "" {
		return fmt.Errorf("catalog: empty name in group %q", group)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[group]
	if !ok {
		g = make(map[string]T)
		c.groups[group] = g
	}
	if _, dup := g[name]; dup {
		return &DuplicateError{Group: group, Name: name}
	}
	g[name] = value
	return nil
}

// Lookup returns the value registered under group/name.
func (c *Catalog[T]) Lookup(group, name string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	g, ok := c.groups[group]
	if !ok {
		return zero, &NotFoundError{Group: group, Available: sortedKeys(c.groups)}
	}
	v, ok := g[name]
	if !ok {
		return zero, &NotFoundError{Group: group, Name: name, Available: sortedKeys(g)}
	}
	return v, nil
}

// Find looks name up across all groups. It fails when the name is missing
// or registered in more than one group.
func (c *Catalog[T]) Find(name string) (T, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		zero  T
		found []string
	)
	for group, g := range c.groups {
		if _, ok := g[name]; ok {
			found = append(found, group)
		}
	}
	switch len(found) {
	case 0:
		return zero, "", &NotFoundError{Name: name, Available: c.allNames()}
	case 1:
		return c.groups[found[0]][name], found[0], nil
	default:
		sort.Strings(found)
		return zero, "", fmt.Errorf("entry %q is ambiguous: registered in groups %v", name, found)
	}
}

// Names returns the sorted names registered in group.
func (c *Catalog[T]) Names(group string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.groups[group])
}

// Groups returns the sorted group labels.
func (c *Catalog[T]) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.groups)
}

// Len returns the total number of entries.
func (c *Catalog[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, g := range c.groups {
		n += len(g)
	}
	return n
}

// Reset drops every entry.
func (c *Catalog[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = make(map[string]map[string]T)
}

func (c *Catalog[T]) allNames() []string {
	var names []string
	for group, g := range c.groups {
		for name := range g {
			names = append(names, group+"/"+name)
		}
	}
	slices.Sort(names)
	return names
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
