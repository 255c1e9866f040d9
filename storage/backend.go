package storage

import (
	"context"
	"errors"
	"strings"
)

// Document kinds understood by every backend.
const (
	KindList       = "lists"
	KindPopularity = "popularity"
)

// ErrNotExist is returned by a Backend when no document is stored under the
// requested key.
var ErrNotExist = errors.New("document does not exist")

// Backend persists whole documents. Save overwrites; there is no versioning
// and no read-modify-write protection.
type Backend interface {
	Load(ctx context.Context, kind, key string) ([]byte, error)
	Save(ctx context.Context, kind, key string, data []byte) error
}

// validKey rejects keys that could escape a directory or break a table key.
func validKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\#?`)
}
