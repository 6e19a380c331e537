package urlalias

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotFound indicates an alias, display id or lookup path does not exist
	ErrNotFound = errors.New("url alias not found")

	// ErrForbidden indicates the requested slot is occupied by a live alias
	ErrForbidden = errors.New("path already exists")

	// ErrInvalidArgument indicates a malformed request, resource or alias value
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSuffixExhausted indicates no free "name<N>" slot was found within the configured attempts
	ErrSuffixExhausted = errors.New("no free alias suffix within attempt limit")

	// ErrConsistency indicates the alias tree violates a structural assumption.
	// Callers must treat it as fatal for the operation.
	ErrConsistency = errors.New("alias tree consistency violation")

	// ErrMissingParentAlias indicates the parent location has no autogenerated alias
	ErrMissingParentAlias = fmt.Errorf("%w: parent location has no url alias", ErrConsistency)

	// ErrMissingLocationAlias indicates a moved or copied location has no autogenerated alias
	ErrMissingLocationAlias = fmt.Errorf("%w: location has no url alias", ErrConsistency)

	// ErrDuplicateAutogenerated indicates more than one autogenerated alias exists for a location
	ErrDuplicateAutogenerated = fmt.Errorf("%w: more than one autogenerated alias for location", ErrConsistency)
)

// AliasError represents an error related to an alias operation
type AliasError struct {
	Op  string
	Key string
	Err error
}

func (e *AliasError) Error() string {
	return fmt.Sprintf("url alias operation %s failed for %q: %v", e.Op, e.Key, e.Err)
}

func (e *AliasError) Unwrap() error {
	return e.Err
}

// StoreError represents an error returned by a store backend
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %s failed on backend %s: %v", e.Op, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden reports whether err is, or wraps, ErrForbidden.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsConsistency reports whether err signals a broken alias tree.
func IsConsistency(err error) bool { return errors.Is(err, ErrConsistency) }

func aliasError(op, key string, err error) error {
	return &AliasError{Op: op, Key: key, Err: err}
}
