package hub

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"shoplist/domain"
)

const reconnectDelay = time.Second

// relayMessage is the pub/sub payload. Origin identifies the publishing
// instance so it can skip its own messages.
type relayMessage struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// Relay carries list events between server instances over Redis pub/sub.
// Notify broadcasts to the local Hub and then publishes; Run receives the
// other instances' messages and broadcasts them locally. Each instance
// therefore delivers every event once, whatever the state of Redis.
type Relay struct {
	rc      *redis.Client
	channel string
	hub     *Hub
	logger  *log.Logger
	origin  string

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRelay creates a relay between channel and the local hub.
func NewRelay(rc *redis.Client, channel string, h *Hub, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Relay{
		rc:      rc,
		channel: channel,
		hub:     h,
		logger:  logger,
		origin:  uuid.NewString(),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the first subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Notify delivers ev to local viewers and publishes it for the other
// instances. Publish failures are logged and dropped.
func (r *Relay) Notify(ctx context.Context, ev domain.Event) {
	r.hub.Broadcast(ev.List.ID, ev)
	data, err := sonic.Marshal(relayMessage{Origin: r.origin, Event: ev})
	if err != nil {
		r.logger.WithError(err).WithField("list", ev.List.ID).Error("marshal relay event")
		return
	}
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{"list": ev.List.ID, "channel": r.channel}).Error("unable to publish list update")
	}
}

// wait sleeps for d unless ctx ends first. It reports whether ctx is still live.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Run listens for relayed events until ctx is cancelled, resubscribing when
// the connection drops.
func (r *Relay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			r.logger.WithError(err).Error("relay subscribe failed, retrying")
			if !wait(ctx, reconnectDelay) {
				return
			}
			continue
		}
		r.readyOnce.Do(func() { close(r.ready) })
		r.consume(ctx, sub.Channel())
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("pubsub channel closed, reconnecting")
		if !wait(ctx, reconnectDelay) {
			return
		}
	}
}

func (r *Relay) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m relayMessage
			if err := sonic.Unmarshal([]byte(msg.Payload), &m); err != nil {
				r.logger.WithError(err).Error("unable to parse relayed update")
				continue
			}
			if m.Origin == r.origin {
				continue
			}
			ev := m.Event
			if ev.Type != domain.ListUpdated || ev.List.ID == "" {
				r.logger.WithField("type", ev.Type).Warn("ignoring unknown relayed event")
				continue
			}
			r.hub.Broadcast(ev.List.ID, ev)
		}
	}
}
