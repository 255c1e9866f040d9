package lists

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shoplist/domain"
	"shoplist/popularity"
)

const tracerName = "shoplist/lists"

// Store is the persistent list store. Get returns nil for an unknown id.
type Store interface {
	Create(ctx context.Context, name string) (domain.List, error)
	Get(ctx context.Context, id string) (*domain.List, error)
	Replace(ctx context.Context, l domain.List) error
}

// Popularity is the usage index updated by item edits and queried for
// suggestions.
type Popularity interface {
	Touch(ctx context.Context, name string) error
	TouchRenamed(ctx context.Context, name string) error
	Rank(ctx context.Context, query string, limit int) ([]string, error)
	Popular(ctx context.Context, limit int) ([]popularity.Entry, error)
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	SuggestionsLimit int
	Logger           *log.Logger
	Tracer           trace.Tracer
}

// Service applies every list edit. Each edit loads the list, changes one
// thing, stamps updated_at, writes the whole list back, updates the
// popularity index where a name was introduced, and then notifies viewers.
//
// There is no locking between the load and the write: two edits of the same
// list that overlap both start from the same snapshot and the later write
// wins.
type Service struct {
	store        Store
	index        Popularity
	notify       Notifier
	logger       *log.Logger
	tracer       trace.Tracer
	suggestLimit int

	now       func() time.Time
	newItemID func() string
}

// NewService wires a Service.
func NewService(store Store, index Popularity, notify Notifier, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.SuggestionsLimit <= 0 {
		opts.SuggestionsLimit = 10
	}
	if notify == nil {
		notify = Notifiers(nil)
	}
	return &Service{
		store:        store,
		index:        index,
		notify:       notify,
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		suggestLimit: opts.SuggestionsLimit,
		now:          time.Now,
		newItemID:    newItemID,
	}
}

func newItemID() string {
	return uuid.NewString()[:8]
}

func (s *Service) start(ctx context.Context, op, listID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "lists."+op, trace.WithAttributes(attribute.String("list.id", listID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreateList persists a new empty list.
func (s *Service) CreateList(ctx context.Context, name string) (l domain.List, err error) {
	ctx, span := s.start(ctx, "CreateList", "")
	defer func() { endSpan(span, err) }()
	l, err = s.store.Create(ctx, name)
	if err != nil {
		return domain.List{}, err
	}
	span.SetAttributes(attribute.String("list.id", l.ID))
	s.logger.WithFields(log.Fields{"list": l.ID}).Info("list created")
	return l, nil
}

// GetList returns the current state of a list.
func (s *Service) GetList(ctx context.Context, id string) (l domain.List, err error) {
	ctx, span := s.start(ctx, "GetList", id)
	defer func() { endSpan(span, err) }()
	got, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.List{}, err
	}
	if got == nil {
		return domain.List{}, domain.ErrListNotFound
	}
	return *got, nil
}

// mutate runs the load, edit, stamp and write steps of every edit.
func (s *Service) mutate(ctx context.Context, listID string, edit func(*domain.List) error) (domain.List, error) {
	l, err := s.store.Get(ctx, listID)
	if err != nil {
		return domain.List{}, err
	}
	if l == nil {
		return domain.List{}, domain.ErrListNotFound
	}
	if err := edit(l); err != nil {
		return domain.List{}, err
	}
	l.UpdatedAt = s.now().UTC()
	if err := s.store.Replace(ctx, *l); err != nil {
		return domain.List{}, err
	}
	return *l, nil
}

// touch updates the popularity index after a committed write. The list is
// already durable at this point, so a failure is logged and not returned.
func (s *Service) touch(ctx context.Context, name string, renamed bool) {
	var err error
	if renamed {
		err = s.index.TouchRenamed(ctx, name)
	} else {
		err = s.index.Touch(ctx, name)
	}
	if err != nil {
		s.logger.WithError(err).WithField("name", name).Warn("popularity update failed")
	}
}

func (s *Service) publish(ctx context.Context, l domain.List) {
	s.notify.Notify(ctx, domain.NewListUpdated(l))
}

// AddItem appends a new uncompleted item.
func (s *Service) AddItem(ctx context.Context, listID, name string) (item domain.Item, err error) {
	ctx, span := s.start(ctx, "AddItem", listID)
	defer func() { endSpan(span, err) }()
	l, err := s.mutate(ctx, listID, func(l *domain.List) error {
		id := s.newItemID()
		for l.HasItem(id) {
			id = s.newItemID()
		}
		item = domain.Item{ID: id, Name: name}
		l.Items = append(l.Items, item)
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	s.touch(ctx, name, false)
	s.publish(ctx, l)
	return item, nil
}

// ToggleItem flips the completed flag of an item.
func (s *Service) ToggleItem(ctx context.Context, listID, itemID string) (item domain.Item, err error) {
	ctx, span := s.start(ctx, "ToggleItem", listID)
	defer func() { endSpan(span, err) }()
	l, err := s.mutate(ctx, listID, func(l *domain.List) error {
		i := l.FindItem(itemID)
		if i < 0 {
			return domain.ErrItemNotFound
		}
		l.Items[i].Completed = !l.Items[i].Completed
		item = l.Items[i]
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	s.publish(ctx, l)
	return item, nil
}

// RenameItem replaces an item's name.
func (s *Service) RenameItem(ctx context.Context, listID, itemID, name string) (item domain.Item, err error) {
	ctx, span := s.start(ctx, "RenameItem", listID)
	defer func() { endSpan(span, err) }()
	l, err := s.mutate(ctx, listID, func(l *domain.List) error {
		i := l.FindItem(itemID)
		if i < 0 {
			return domain.ErrItemNotFound
		}
		l.Items[i].Name = name
		item = l.Items[i]
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	s.touch(ctx, name, true)
	s.publish(ctx, l)
	return item, nil
}

// RemoveItem drops an item. Removing an unknown item still rewrites the list
// and notifies viewers.
func (s *Service) RemoveItem(ctx context.Context, listID, itemID string) (err error) {
	ctx, span := s.start(ctx, "RemoveItem", listID)
	defer func() { endSpan(span, err) }()
	l, err := s.mutate(ctx, listID, func(l *domain.List) error {
		kept := make([]domain.Item, 0, len(l.Items))
		for _, it := range l.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		l.Items = kept
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, l)
	return nil
}

// RenameList changes a list's display name.
func (s *Service) RenameList(ctx context.Context, listID, name string) (l domain.List, err error) {
	ctx, span := s.start(ctx, "RenameList", listID)
	defer func() { endSpan(span, err) }()
	l, err = s.mutate(ctx, listID, func(l *domain.List) error {
		l.Name = name
		return nil
	})
	if err != nil {
		return domain.List{}, err
	}
	s.publish(ctx, l)
	return l, nil
}

// Suggest returns popular names matching query.
func (s *Service) Suggest(ctx context.Context, query string) (names []string, err error) {
	ctx, span := s.start(ctx, "Suggest", "")
	defer func() { endSpan(span, err) }()
	return s.index.Rank(ctx, query, s.suggestLimit)
}

// Popular returns the most used names with their scores.
func (s *Service) Popular(ctx context.Context, limit int) (entries []popularity.Entry, err error) {
	ctx, span := s.start(ctx, "Popular", "")
	defer func() { endSpan(span, err) }()
	return s.index.Popular(ctx, limit)
}
