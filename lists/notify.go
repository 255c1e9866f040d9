package lists

import (
	"context"

	log "github.com/sirupsen/logrus"

	"shoplist/domain"
)

// Notifier delivers a list event somewhere. Delivery is best effort: it has no
// error result and never affects the mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event)
}

// Notifiers fans one event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev domain.Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Publisher appends events to an external feed.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// FeedNotifier adapts a Publisher, logging and dropping publish failures.
type FeedNotifier struct {
	Publisher Publisher
	Logger    *log.Logger
}

func (f FeedNotifier) Notify(ctx context.Context, ev domain.Event) {
	if err := f.Publisher.Publish(ctx, ev); err != nil {
		logger := f.Logger
		if logger == nil {
			logger = log.StandardLogger()
		}
		logger.WithError(err).WithField("list", ev.List.ID).Error("change feed publish failed")
	}
}
