package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RemoteEvent is an event republished across server instances. Origin is the
// publishing server's id so receivers can suppress their own echo.
type RemoteEvent struct {
	Origin  string                 `json:"origin"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

// RedisBridge fans collaboration events out to other server instances via
// Redis pub/sub. Each workspace and document gets its own channel.
type RedisBridge struct {
	publisher     *redis.Client
	subscriber    *redis.Client
	connected     bool
	channelPrefix string
	serverID      string

	handlers   map[string][]func(*RemoteEvent)
	handlersMu sync.RWMutex
	pubsubs    map[string]*redis.PubSub
	pubsubsMu  sync.RWMutex
}

// RedisBridgeConfig holds Redis connection configuration.
type RedisBridgeConfig struct {
	URL           string
	ChannelPrefix string
	ServerID      string
	MaxRetries    int
}

// NewRedisBridge creates a new cross-server event bridge.
func NewRedisBridge(config *RedisBridgeConfig) (*RedisBridge, error) {
	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxRetries > 0 {
		opt.MaxRetries = config.MaxRetries
	}

	prefix := config.ChannelPrefix
	if prefix == "" {
		prefix = "collab:"
	}

	return &RedisBridge{
		publisher:     redis.NewClient(opt),
		subscriber:    redis.NewClient(opt),
		channelPrefix: prefix,
		serverID:      config.ServerID,
		handlers:      make(map[string][]func(*RemoteEvent)),
		pubsubs:       make(map[string]*redis.PubSub),
	}, nil
}

// Connect establishes both Redis connections.
func (r *RedisBridge) Connect(ctx context.Context) error {
	if err := r.publisher.Ping(ctx).Err(); err != nil {
		return NewConnectionError("failed to connect publisher", err)
	}
	if err := r.subscriber.Ping(ctx).Err(); err != nil {
		return NewConnectionError("failed to connect subscriber", err)
	}
	r.connected = true
	return nil
}

// Disconnect closes subscriptions and both clients.
func (r *RedisBridge) Disconnect(ctx context.Context) error {
	r.connected = false

	r.pubsubsMu.Lock()
	for _, ps := range r.pubsubs {
		ps.Close()
	}
	r.pubsubs = make(map[string]*redis.PubSub)
	r.pubsubsMu.Unlock()

	r.publisher.Close()
	r.subscriber.Close()
	return nil
}

// IsConnected returns connection status.
func (r *RedisBridge) IsConnected() bool {
	return r.connected
}

// HealthCheck verifies Redis connectivity.
func (r *RedisBridge) HealthCheck(ctx context.Context) (bool, error) {
	err := r.publisher.Ping(ctx).Err()
	return err == nil, err
}

// PublishToWorkspace republishes a workspace-room event to other servers.
func (r *RedisBridge) PublishToWorkspace(ctx context.Context, workspaceID, event string, payload map[string]interface{}) error {
	return r.publish(ctx, r.workspaceChannel(workspaceID), event, payload)
}

// PublishToDocument republishes a document-room event to other servers.
func (r *RedisBridge) PublishToDocument(ctx context.Context, documentID, event string, payload map[string]interface{}) error {
	return r.publish(ctx, r.documentChannel(documentID), event, payload)
}

// SubscribeWorkspace delivers remote workspace-room events to handler.
// Events originating from this server are filtered out.
func (r *RedisBridge) SubscribeWorkspace(ctx context.Context, workspaceID string, handler func(*RemoteEvent)) error {
	return r.subscribe(ctx, r.workspaceChannel(workspaceID), handler)
}

// SubscribeDocument delivers remote document-room events to handler.
func (r *RedisBridge) SubscribeDocument(ctx context.Context, documentID string, handler func(*RemoteEvent)) error {
	return r.subscribe(ctx, r.documentChannel(documentID), handler)
}

// UnsubscribeWorkspace drops the workspace channel subscription.
func (r *RedisBridge) UnsubscribeWorkspace(ctx context.Context, workspaceID string) error {
	return r.unsubscribe(ctx, r.workspaceChannel(workspaceID))
}

// UnsubscribeDocument drops the document channel subscription.
func (r *RedisBridge) UnsubscribeDocument(ctx context.Context, documentID string) error {
	return r.unsubscribe(ctx, r.documentChannel(documentID))
}

func (r *RedisBridge) publish(ctx context.Context, channel, event string, payload map[string]interface{}) error {
	data, err := json.Marshal(&RemoteEvent{
		Origin:  r.serverID,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal remote event: %w", err)
	}
	return r.publisher.Publish(ctx, channel, data).Err()
}

func (r *RedisBridge) subscribe(ctx context.Context, channel string, handler func(*RemoteEvent)) error {
	r.handlersMu.Lock()
	r.handlers[channel] = append(r.handlers[channel], handler)
	isFirstHandler := len(r.handlers[channel]) == 1
	r.handlersMu.Unlock()

	// One pubsub per channel regardless of handler count.
	if isFirstHandler {
		pubsub := r.subscriber.Subscribe(ctx, channel)
		// Wait for the subscription confirmation so events published right
		// after Subscribe* returns are not lost.
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return err
		}

		r.pubsubsMu.Lock()
		r.pubsubs[channel] = pubsub
		r.pubsubsMu.Unlock()

		go r.handleMessages(channel, pubsub)
	}

	return nil
}

func (r *RedisBridge) unsubscribe(ctx context.Context, channel string) error {
	r.handlersMu.Lock()
	delete(r.handlers, channel)
	r.handlersMu.Unlock()

	r.pubsubsMu.Lock()
	if ps, ok := r.pubsubs[channel]; ok {
		ps.Unsubscribe(ctx, channel)
		ps.Close()
		delete(r.pubsubs, channel)
	}
	r.pubsubsMu.Unlock()

	return nil
}

func (r *RedisBridge) handleMessages(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for msg := range ch {
		var evt RemoteEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			continue
		}
		if evt.Origin == r.serverID {
			continue
		}

		r.handlersMu.RLock()
		handlers := r.handlers[channel]
		r.handlersMu.RUnlock()

		for _, handler := range handlers {
			handler(&evt)
		}
	}
}

func (r *RedisBridge) workspaceChannel(workspaceID string) string {
	return fmt.Sprintf("%sws:%s", r.channelPrefix, workspaceID)
}

func (r *RedisBridge) documentChannel(documentID string) string {
	return fmt.Sprintf("%sdoc:%s", r.channelPrefix, documentID)
}
