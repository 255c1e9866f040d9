package popularity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"shoplist/domain"
	"shoplist/storage"
)

const indexKey = "index"

// Entry is one ranked name with its usage score.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Policy holds the tunable ranking parameters.
type Policy struct {
	// MinScore is the score a user-entered name needs before it is suggested.
	// Names from the built-in vocabulary are always eligible.
	MinScore int
	// RenameSeed is the starting score of a name first introduced by a rename.
	RenameSeed int
	// MigrationSeed is the score given to every name of a legacy index.
	MigrationSeed int
}

// DefaultPolicy returns the production ranking policy.
func DefaultPolicy() Policy {
	return Policy{MinScore: 3, RenameSeed: 3, MigrationSeed: 3}
}

// Index is the process-wide popularity table. It is loaded lazily on first
// use and written back in full after every change.
type Index struct {
	backend storage.Backend
	policy  Policy
	logger  *log.Logger

	mu     sync.Mutex
	loaded bool
	order  []string
	scores map[string]int
}

// New creates an Index persisted through backend.
func New(backend storage.Backend, policy Policy, logger *log.Logger) *Index {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Index{backend: backend, policy: policy, logger: logger}
}

// ensureLoaded must be called with mu held.
func (x *Index) ensureLoaded(ctx context.Context) error {
	if x.loaded {
		return nil
	}
	data, err := x.backend.Load(ctx, storage.KindPopularity, indexKey)
	var entries []Entry
	switch {
	case errors.Is(err, storage.ErrNotExist):
		entries = append(entries, seedVocabulary...)
		x.logger.Debug("popularity index not found, using built-in vocabulary")
	case err != nil:
		return &domain.StorageError{Op: "load", Key: storage.KindPopularity, Err: err}
	default:
		var legacy bool
		entries, legacy, err = decodeIndex(data)
		if err != nil {
			return &domain.StorageError{Op: "decode", Key: storage.KindPopularity, Err: err}
		}
		if legacy {
			for i := range entries {
				entries[i].Count = x.policy.MigrationSeed
			}
			x.logger.WithField("names", len(entries)).Info("migrated legacy popularity index")
		}
	}
	x.order = x.order[:0]
	x.scores = make(map[string]int, len(entries))
	for _, e := range entries {
		if cur, ok := x.scores[e.Name]; ok {
			if e.Count > cur {
				x.scores[e.Name] = e.Count
			}
			continue
		}
		x.order = append(x.order, e.Name)
		x.scores[e.Name] = e.Count
	}
	x.loaded = true
	return nil
}

// entries must be called with mu held.
func (x *Index) entries() []Entry {
	out := make([]Entry, len(x.order))
	for i, name := range x.order {
		out[i] = Entry{Name: name, Count: x.scores[name]}
	}
	return out
}

// Load returns a copy of the current name to score mapping.
func (x *Index) Load(ctx context.Context) (map[string]int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(x.scores))
	for k, v := range x.scores {
		out[k] = v
	}
	return out, nil
}

// Touch records one use of name: +1, or a new entry at 1.
func (x *Index) Touch(ctx context.Context, name string) error {
	return x.bump(ctx, name, 1)
}

// TouchRenamed records a use of a name introduced by renaming an item. A new
// entry starts at the policy's rename seed so it is suggested right away.
func (x *Index) TouchRenamed(ctx context.Context, name string) error {
	return x.bump(ctx, name, x.policy.RenameSeed)
}

func (x *Index) bump(ctx context.Context, name string, initial int) error {
	if initial < 1 {
		initial = 1
	}
	x.mu.Lock()
	if err := x.ensureLoaded(ctx); err != nil {
		x.mu.Unlock()
		return err
	}
	if cur, ok := x.scores[name]; ok {
		x.scores[name] = cur + 1
	} else {
		x.order = append(x.order, name)
		x.scores[name] = initial
	}
	snapshot := x.entries()
	x.mu.Unlock()

	// Persisting outside the lock: concurrent touches may write their
	// snapshots in either order and the last write wins on disk.
	data, err := encodeIndex(snapshot)
	if err != nil {
		return &domain.StorageError{Op: "encode", Key: storage.KindPopularity, Err: err}
	}
	if err := x.backend.Save(ctx, storage.KindPopularity, indexKey, data); err != nil {
		return &domain.StorageError{Op: "save", Key: storage.KindPopularity, Err: err}
	}
	return nil
}

// ranked returns eligible entries matching query, best first. Must be called
// with mu held.
func (x *Index) ranked(query string) []Entry {
	q := strings.ToLower(query)
	filter := utf8.RuneCountInString(query) >= 2
	out := make([]Entry, 0, len(x.order))
	for _, name := range x.order {
		score := x.scores[name]
		if score < x.policy.MinScore && !isSeedName(name) {
			continue
		}
		if filter && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		out = append(out, Entry{Name: name, Count: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func truncate(entries []Entry, limit int) []Entry {
	if limit < 0 {
		limit = 0
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Rank returns up to limit names for query. Queries shorter than two
// characters return the overall most popular names.
func (x *Index) Rank(ctx context.Context, query string, limit int) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	entries := truncate(x.ranked(query), limit)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// Popular returns up to limit eligible names with their scores, best first.
func (x *Index) Popular(ctx context.Context, limit int) ([]Entry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return truncate(x.ranked(""), limit), nil
}
