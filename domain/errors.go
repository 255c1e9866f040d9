package domain

import (
	"errors"
	"fmt"
)

// ErrListNotFound indicates that no list exists for the given id.
var ErrListNotFound = errors.New("list not found")

// ErrItemNotFound indicates that the list exists but holds no item with the
// given id.
var ErrItemNotFound = errors.New("item not found")

// StorageError wraps a failure of the persistence medium.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
