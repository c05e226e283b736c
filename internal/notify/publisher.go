// Package notify fans structured pipeline events out to per-teacher channels.
// Delivery is fire and forget: subscribers that are not connected at publish
// time miss the event, and there is no replay log.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/observability"
)

const subscriberBufferSize = 16

// EvaluationChannel is the per-teacher channel for single-subject evaluation
// results.
func EvaluationChannel(teacher string) string { return "evaluations/" + teacher }

// UploadChannel is the per-teacher channel for upload results.
func UploadChannel(teacher string) string { return "uploads/" + teacher }

// TeacherChannel is the per-teacher channel for bulk progress events.
func TeacherChannel(teacher string) string { return "teacher/" + teacher }

// Publisher delivers events to teacher channels, at most once each.
type Publisher interface {
	Publish(ctx context.Context, channel string, event dto.Event)
	Subscribe(channel string) (<-chan dto.Event, func())
	Start(ctx context.Context)
}

type relayEnvelope struct {
	Source  string    `json:"source"`
	Channel string    `json:"channel"`
	Event   dto.Event `json:"event"`
	SentAt  time.Time `json:"sent_at"`
}

type broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.Event]struct{}
}

type publisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	broker       *broker
	nodeID       string
}

// Options configures the optional cross-node relay legs.
type Options struct {
	Redis       *redis.Client
	RelayName   string
	NATS        *nats.Conn
	NATSSubject string
}

// NewPublisher builds a publisher with an in-process broker and optional
// redis/NATS relays so events reach subscribers on other nodes.
func NewPublisher(opts Options, logger zerolog.Logger) Publisher {
	relay := opts.RelayName
	if relay == "" {
		relay = "autoeval:events"
	}

	subject := opts.NATSSubject
	if subject == "" {
		subject = strings.ReplaceAll(relay, ":", ".")
	}

	return &publisher{
		redis:        opts.Redis,
		redisChannel: relay,
		nats:         opts.NATS,
		natsSubject:  subject,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "notify_publisher").Logger(),
		broker: &broker{
			subscribers: make(map[string]map[chan dto.Event]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start launches the relay consumers; callers that run single-node may skip it.
func (p *publisher) Start(ctx context.Context) {
	if p.redis != nil {
		go p.consumeRedis(ctx)
	}
	if p.nats != nil {
		go p.consumeNATS(ctx)
	}
}

func (p *publisher) Publish(ctx context.Context, channel string, event dto.Event) {
	event.Message = strings.TrimSpace(p.sanitizer.Sanitize(event.Message))

	observability.NotificationsPublishedTotal().WithLabelValues(event.Type).Inc()
	p.broker.broadcast(channel, event)

	if err := p.relay(ctx, channel, event); err != nil {
		p.logger.Warn().Err(err).Str("channel", channel).Msg("failed to relay event")
	}
}

func (p *publisher) Subscribe(channel string) (<-chan dto.Event, func()) {
	ch := make(chan dto.Event, subscriberBufferSize)

	p.broker.subscribe(channel, ch)
	observability.NotificationClientsActive().Inc()

	cleanup := func() {
		p.broker.unsubscribe(channel, ch)
		observability.NotificationClientsActive().Dec()
	}

	return ch, cleanup
}

func (p *publisher) relay(ctx context.Context, channel string, event dto.Event) error {
	if p.redis == nil && p.nats == nil {
		return nil
	}

	payload, err := json.Marshal(relayEnvelope{
		Source:  p.nodeID,
		Channel: channel,
		Event:   event,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (p *publisher) consumeRedis(ctx context.Context) {
	pubsub := p.redis.Subscribe(ctx, p.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error().Err(err).Msg("event relay redis subscription closed")
			return
		}
		p.handleRelayed([]byte(msg.Payload))
	}
}

func (p *publisher) consumeNATS(ctx context.Context) {
	sub, err := p.nats.QueueSubscribe(p.natsSubject, "autoeval-events", func(msg *nats.Msg) {
		p.handleRelayed(msg.Data)
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to drain nats event subscription")
		}
	}()
}

func (p *publisher) handleRelayed(payload []byte) {
	var envelope relayEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		p.logger.Warn().Err(err).Msg("invalid relayed event payload")
		return
	}

	// Locally published events were already broadcast.
	if envelope.Source == p.nodeID {
		return
	}

	p.broker.broadcast(envelope.Channel, envelope.Event)
}

func (b *broker) subscribe(channel string, ch chan dto.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[channel]; !exists {
		b.subscribers[channel] = make(map[chan dto.Event]struct{})
	}
	b.subscribers[channel][ch] = struct{}{}
}

func (b *broker) unsubscribe(channel string, ch chan dto.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[channel]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, channel)
		}
	}
}

func (b *broker) broadcast(channel string, event dto.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[channel] {
		select {
		case ch <- event:
		default:
			// Slow subscriber; at-most-once delivery drops the event.
		}
	}
}
