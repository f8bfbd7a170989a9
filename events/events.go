// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects, relative to the configured prefix.
const (
	UserCreated    = "user.created"
	UserDeleted    = "user.deleted"
	PostCreated    = "post.created"
	PostDeleted    = "post.deleted"
	CommentCreated = "comment.created"
	CommentDeleted = "comment.deleted"
	FollowCreated  = "follow.created"
	FollowRemoved  = "follow.removed"
)

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
	Close()
}

// Envelope is what goes on the wire.
type Envelope struct {
	Subject   string      `json:"subject"`
	Timestamp string      `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

type UserEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

type PostEvent struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id,omitempty"`
}

type CommentEvent struct {
	CommentID string `json:"comment_id"`
	PostID    string `json:"post_id,omitempty"`
	AuthorID  string `json:"author_id,omitempty"`
}

type FollowEvent struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

// NATSPublisher publishes JSON envelopes on "<prefix>.<subject>".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the NATS server at url.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("chamran"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) subject(s string) string {
	if p.prefix == "" {
		return s
	}
	return p.prefix + "." + s
}

// Publish marshals payload into an Envelope and publishes it.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := p.subject(subject)
	data, err := json.Marshal(Envelope{
		Subject:   full,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(full, data)
}

// Subscribe delivers every event under the prefix to handler.
func (p *NATSPublisher) Subscribe(handler func(subject string, data []byte)) (*nats.Subscription, error) {
	return p.conn.Subscribe(p.subject(">"), func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
}

// Healthy reports an error while the connection is down.
func (p *NATSPublisher) Healthy(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats %s", p.conn.Status())
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Nop discards every event. Used when NATS is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, interface{}) error { return nil }
func (Nop) Close()                                             {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Envelope
}

func (r *Recorder) Publish(_ context.Context, subject string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Envelope{Subject: subject, Payload: payload})
	return nil
}

func (r *Recorder) Close() {}

// Subjects returns the recorded subjects in publish order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Subject)
	}
	return out
}

// Emit publishes and logs failures. Events never fail the operation that produced them.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, subject string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, payload); err != nil {
		logger.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}
