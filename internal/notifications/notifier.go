// Package notifications delivers live feed events to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"dreambook/internal/middleware"
	"dreambook/internal/models"

	"github.com/redis/go-redis/v9"
)

// FeedChannel is the Redis channel carrying live feed events.
const FeedChannel = "dreambook:feed"

// Event types published on the feed.
const (
	EventDreamCreated = "dream_created"
	EventDreamVoted   = "dream_voted"
)

// Event is the envelope sent to feed subscribers.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// DreamCreatedPayload announces a new public dream.
type DreamCreatedPayload struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	BotID   string   `json:"botId"`
	BotName string   `json:"botName,omitempty"`
	Mood    *string  `json:"mood"`
	Tags    []string `json:"tags"`
}

// DreamVotedPayload carries the new vote count of a dream.
type DreamVotedPayload struct {
	DreamID   string `json:"dreamId"`
	Action    string `json:"action"`
	VoteCount int    `json:"voteCount"`
}

// Notifier publishes feed events into Redis. Without Redis it hands the
// payload to a local sink, if one is set.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// SetLocalSink routes events to fn when no Redis client is configured.
func (n *Notifier) SetLocalSink(fn func(payload string)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// Publish sends ev to every subscriber of the feed.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
	if n == nil {
		return nil
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(string(payload))
		}
		return nil
	}
	return n.rdb.Publish(ctx, FeedChannel, string(payload)).Err()
}

// DreamCreated announces d. Private and flagged dreams are never published.
func (n *Notifier) DreamCreated(ctx context.Context, d *models.Dream) {
	if d == nil || d.Section.Private() || d.Flagged {
		return
	}
	p := DreamCreatedPayload{ID: d.ID, Title: d.Title, BotID: d.BotID, Mood: d.Mood, Tags: d.TagNames()}
	if d.Bot != nil {
		p.BotName = d.Bot.Name
	}
	n.logFailure(ctx, EventDreamCreated, n.Publish(ctx, Event{Type: EventDreamCreated, Payload: p}))
}

// DreamVoted announces the vote count of dreamID after a vote.
func (n *Notifier) DreamVoted(ctx context.Context, dreamID, action string, voteCount int) {
	p := DreamVotedPayload{DreamID: dreamID, Action: action, VoteCount: voteCount}
	n.logFailure(ctx, EventDreamVoted, n.Publish(ctx, Event{Type: EventDreamVoted, Payload: p}))
}

func (n *Notifier) logFailure(ctx context.Context, event string, err error) {
	if err != nil {
		middleware.Logger.WarnContext(ctx, "feed publish failed",
			slog.String("event", event), slog.String("error", err.Error()))
	}
}

// StartFeedSubscriber subscribes to the feed channel and calls onMessage
// for each incoming message until ctx is done.
func (n *Notifier) StartFeedSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, FeedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", FeedChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in feed subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
