// Package bus publishes job events on NATS.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/nats-io/nats.go"
)

// DefaultSubject prefixes every published event subject.
const DefaultSubject = "flbt.jobs"

// Client publishes events under a subject prefix.
type Client struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url. Events are published on "<prefix>.<status>".
func Connect(url, prefix string) (*Client, error) {
	if prefix == "" {
		prefix = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("flbt"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &Client{nc: nc, prefix: prefix}, nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// Subject returns the subject an event with status is published on.
func (c *Client) Subject(status models.Status) string {
	return Subject(c.prefix, status)
}

// Subject joins prefix and the lower-cased status.
func Subject(prefix string, status models.Status) string {
	return prefix + "." + strings.ToLower(string(status))
}

// Publish sends ev as JSON. It satisfies service.Sink.
func (c *Client) Publish(ctx context.Context, ev models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.nc.Publish(c.Subject(ev.To), b); err != nil {
		return fmt.Errorf("publish %s: %w", ev.ExternalID, err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (c *Client) Flush(ctx context.Context) error {
	return c.nc.FlushWithContext(ctx)
}

// SubscribeEvents delivers every event under the prefix to handler.
func (c *Client) SubscribeEvents(handler func(ctx context.Context, ev models.Event)) (*nats.Subscription, error) {
	return c.nc.Subscribe(c.prefix+".>", func(msg *nats.Msg) {
		var ev models.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, ev)
	})
}
