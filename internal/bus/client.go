// Package bus publishes session lifecycle announcements over NATS so
// external observers (companion apps, analytics) can follow meditation
// sessions without holding an HTTP stream open.
package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mindwave-labs/mindwave-core/internal/config"
	"github.com/mindwave-labs/mindwave-core/internal/protocol"
)

// Client wraps a NATS connection with announcement helpers.
type Client struct {
	conn  *nats.Conn
	log   *slog.Logger
	clock func() time.Time
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("mindwave"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))
	return &Client{conn: conn, log: log.With(slog.String("component", "bus")), clock: time.Now}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

// Announce publishes a session announcement on subject. Announcements are
// fire-and-forget: a failure is logged, never surfaced to the stream.
func (c *Client) Announce(subject string, ann protocol.SessionAnnouncement) {
	if c == nil {
		return
	}
	if ann.Timestamp.IsZero() {
		ann.Timestamp = c.clock().UTC()
	}
	payload, err := json.Marshal(ann)
	if err != nil {
		c.log.Warn("encode announcement failed", slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		c.log.Warn("publish announcement failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
