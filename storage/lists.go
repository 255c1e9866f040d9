package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid/v2"

	"shoplist/domain"
)

// Lists is the persistent list store. Every call is a single whole-document
// read or overwrite; nothing spans a Get and a later Replace.
type Lists struct {
	backend Backend
	now     func() time.Time
	newID   func() string
}

// NewLists returns a list store on top of the given backend.
func NewLists(backend Backend) *Lists {
	return &Lists{
		backend: backend,
		now:     time.Now,
		newID:   newListID,
	}
}

func newListID() string {
	return strings.ToLower(ulid.Make().String())
}

// Create allocates a new list with no items and persists it.
func (s *Lists) Create(ctx context.Context, name string) (domain.List, error) {
	now := s.now().UTC()
	l := domain.List{
		ID:        s.newID(),
		Name:      name,
		Items:     []domain.Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Replace(ctx, l); err != nil {
		return domain.List{}, err
	}
	return l, nil
}

// Get returns the stored list, or nil when no list exists for id.
func (s *Lists) Get(ctx context.Context, id string) (*domain.List, error) {
	data, err := s.backend.Load(ctx, KindList, id)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "load", Key: id, Err: err}
	}
	var l domain.List
	if err := sonic.Unmarshal(data, &l); err != nil {
		return nil, &domain.StorageError{Op: "decode", Key: id, Err: err}
	}
	if l.Items == nil {
		l.Items = []domain.Item{}
	}
	return &l, nil
}

// Replace overwrites the stored document for l.ID with the full list.
func (s *Lists) Replace(ctx context.Context, l domain.List) error {
	if l.Items == nil {
		l.Items = []domain.Item{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(l, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: l.ID, Err: err}
	}
	if err := s.backend.Save(ctx, KindList, l.ID, data); err != nil {
		return &domain.StorageError{Op: "save", Key: l.ID, Err: err}
	}
	return nil
}
