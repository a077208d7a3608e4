// Package paths enables a "parse-don't-validate" approach to file paths.
//
// Defines an `AbsolutePath` type. It should be passed by value when it is
// guaranteed to be present, and otherwise by pointer so that a nil value can
// represent an unset path.
//
// The text representation can be retrieved as `string(path)`. Instead of
// checking that arbitrary strings are valid inputs, this helps use the type
// system to ensure that they were validated somewhere earlier in the call
// stack.
package paths

import (
	"path/filepath"
)

// AbsolutePath is a cleaned, absolute path using the OS file separator.
//
// It does not end with a trailing slash except if it is a root directory,
// such as '/' on Unix.
type AbsolutePath string

// OrEmpty returns the path, or an empty string if the path is nil.
func (path *AbsolutePath) OrEmpty() string {
	if path == nil {
		return ""
	} else {
		return string(*path)
	}
}

// Absolute makes a path absolute.
//
// If the path is already absolute, this returns a cleaned absolute path.
// If it's relative, it's made absolute by joining to the current working
// directory. An empty string becomes the current working directory.
//
// This may return an error if it fails to get the working directory,
// which can happen if it was deleted.
func Absolute(path string) (*AbsolutePath, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	// NOTE: filepath.Abs() calls Clean() on the result.
	return toPtr(AbsolutePath(absPath)), nil
}

// Join appends path components to the path.
func (path AbsolutePath) Join(elem ...string) AbsolutePath {
	parts := append([]string{string(path)}, elem...)
	return AbsolutePath(filepath.Join(parts...))
}

// Base returns the last component of the path.
func (path AbsolutePath) Base() string {
	return filepath.Base(string(path))
}

// Something that should exist in Go's standard library.
func toPtr[T any](x T) *T {
	return &x
}
