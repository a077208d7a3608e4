// Package runconfig models the argument vector handed to the trainer.
package runconfig

import (
	"fmt"
	"strconv"
)

// Item is a single trainer flag with its values.
//
// A boolean (presence-only) flag has no values. Per-view flags such as
// gaussian_prob carry one value per augmentation view.
type Item struct {
	Flag   string
	Values []string
}

// RunConfig is the configuration of a single training run, kept as an
// ordered flag list.
//
// Assembly is deterministic: the base template's order is preserved,
// overriding an existing flag rewrites it in place, and new flags append in
// application order. Later overrides win.
type RunConfig struct {
	items []Item
	index map[string]int
}

func New() *RunConfig {
	return &RunConfig{
		index: make(map[string]int),
	}
}

// NewFrom builds a RunConfig from a base template of items, in order.
func NewFrom(items []Item) *RunConfig {
	rc := New()
	for _, item := range items {
		rc.Set(item.Flag, item.Values...)
	}
	return rc
}

// Set records a flag and its values, overriding any previous values.
//
// The flag name is the trainer's spelling without the leading dashes,
// e.g. "voc_size".
func (rc *RunConfig) Set(flag string, values ...string) {
	if i, ok := rc.index[flag]; ok {
		rc.items[i].Values = values
		return
	}
	rc.index[flag] = len(rc.items)
	rc.items = append(rc.items, Item{Flag: flag, Values: values})
}

// SetBool records a presence-only flag, or removes it when off.
func (rc *RunConfig) SetBool(flag string, on bool) {
	if on {
		rc.Set(flag)
	} else {
		rc.Remove(flag)
	}
}

// SetInt records a flag with a single integer value.
func (rc *RunConfig) SetInt(flag string, value int) {
	rc.Set(flag, strconv.Itoa(value))
}

// SetFloat records a flag with a single float value.
func (rc *RunConfig) SetFloat(flag string, value float64) {
	rc.Set(flag, strconv.FormatFloat(value, 'g', -1, 64))
}

// Remove deletes a flag if present. Order of the remaining flags is kept.
func (rc *RunConfig) Remove(flag string) {
	i, ok := rc.index[flag]
	if !ok {
		return
	}
	rc.items = append(rc.items[:i], rc.items[i+1:]...)
	delete(rc.index, flag)
	for j := i; j < len(rc.items); j++ {
		rc.index[rc.items[j].Flag] = j
	}
}

// Get returns the values of a flag and whether it is present.
func (rc *RunConfig) Get(flag string) ([]string, bool) {
	i, ok := rc.index[flag]
	if !ok {
		return nil, false
	}
	return rc.items[i].Values, true
}

// Has reports whether a flag is present.
func (rc *RunConfig) Has(flag string) bool {
	_, ok := rc.index[flag]
	return ok
}

// GetString returns the single value of a flag, or "" if unset.
func (rc *RunConfig) GetString(flag string) string {
	values, ok := rc.Get(flag)
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

// GetInt parses the single value of a flag as an integer.
func (rc *RunConfig) GetInt(flag string) (int, error) {
	values, ok := rc.Get(flag)
	if !ok || len(values) != 1 {
		return 0, fmt.Errorf("flag %s is not a single value", flag)
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, fmt.Errorf("flag %s: %w", flag, err)
	}
	return n, nil
}

// GetFloat parses the single value of a flag as a float.
func (rc *RunConfig) GetFloat(flag string) (float64, error) {
	values, ok := rc.Get(flag)
	if !ok || len(values) != 1 {
		return 0, fmt.Errorf("flag %s is not a single value", flag)
	}
	f, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0, fmt.Errorf("flag %s: %w", flag, err)
	}
	return f, nil
}

// Merge applies every item of other on top of this config.
// Other's items override on conflict and append otherwise, in other's order.
func (rc *RunConfig) Merge(other *RunConfig) {
	for _, item := range other.items {
		rc.Set(item.Flag, item.Values...)
	}
}

// Items returns the ordered flag list.
func (rc *RunConfig) Items() []Item {
	return rc.items
}

// Clone returns a deep copy of the config.
func (rc *RunConfig) Clone() *RunConfig {
	clone := New()
	for _, item := range rc.items {
		clone.Set(item.Flag, item.Values...)
	}
	return clone
}

// Argv renders the assembled argument vector for the trainer.
//
// Identical configurations always render identical vectors.
func (rc *RunConfig) Argv() []string {
	var argv []string
	for _, item := range rc.items {
		argv = append(argv, "--"+item.Flag)
		argv = append(argv, item.Values...)
	}
	return argv
}
