package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tandem-app/checkin-server-go/internal/event"
	redisclient "github.com/tandem-app/checkin-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

type Client struct {
	SessionID     string
	ParticipantID string
	Events        chan event.Envelope
	Done          chan struct{}
}

// sessionSubs is one session's subscriber set plus the cancel func of its
// Redis pump goroutine. Sessions come and go with their subscribers, so the
// pump's lifetime is tied to the set: the last unsubscribe cancels it.
type sessionSubs struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans session events out to every SSE subscriber of that session.
// Events travel through Redis pub/sub so subscribers on any server instance
// receive them. Delivery to a slow or mid-teardown client is dropped, never
// retried, and never blocks the publisher.
type Broker struct {
	redis    *redisclient.Client
	sessions map[string]*sessionSubs
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:    redisClient,
		sessions: make(map[string]*sessionSubs),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *Broker) Subscribe(sessionID, participantID string) *Client {
	client := &Client{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Events:        make(chan event.Envelope, 100),
		Done:          make(chan struct{}),
	}

	b.mu.Lock()
	subs, ok := b.sessions[sessionID]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		subs = &sessionSubs{
			clients: make(map[*Client]bool),
			cancel:  cancel,
		}
		b.sessions[sessionID] = subs
		go b.subscribeToRedis(ctx, sessionID)
	}
	subs.clients[client] = true
	clientCount := len(subs.clients)
	b.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Str("participantId", participantID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.sessions[client.SessionID]
	if !ok || !subs.clients[client] {
		return
	}

	delete(subs.clients, client)
	close(client.Done)

	if len(subs.clients) == 0 {
		subs.cancel()
		delete(b.sessions, client.SessionID)
	}

	log.Info().
		Str("sessionId", client.SessionID).
		Str("participantId", client.ParticipantID).
		Int("clientCount", len(subs.clients)).
		Msg("sse client unsubscribed")
}

// Publish marshals e and pushes it onto the session's Redis channel.
func (b *Broker) Publish(ctx context.Context, sessionID string, e event.Event) error {
	env, err := event.Wrap(e)
	if err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	channel := redisclient.SessionChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, sessionID string) {
	channel := redisclient.SessionChannel(sessionID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("sessionId", sessionID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env event.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(sessionID, env)
		}
	}
}

func (b *Broker) broadcast(sessionID string, env event.Envelope) {
	b.mu.RLock()
	subs := b.sessions[sessionID]
	var clients []*Client
	if subs != nil {
		clients = make([]*Client, 0, len(subs.clients))
		for client := range subs.clients {
			clients = append(clients, client)
		}
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- env:
		default:
			log.Warn().
				Str("sessionId", sessionID).
				Str("participantId", client.ParticipantID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subs := range b.sessions {
		for client := range subs.clients {
			close(client.Done)
		}
	}
	b.sessions = make(map[string]*sessionSubs)
}

func (b *Broker) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if subs, ok := b.sessions[sessionID]; ok {
		return len(subs.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.sessions {
		total += len(subs.clients)
	}
	return total
}
