package feed

import (
	"encoding/json"
	"log/slog"
	"math"
	"sync"

	"github.com/locshare/locshare/internal/wsconn"
	"github.com/locshare/locshare/pkg/core"
	"github.com/locshare/locshare/pkg/streaming"
)

// Config holds feed client configuration.
type Config struct {
	URL       string
	Secret    string
	Namespace string
}

// SnapshotHandler receives every decoded roster snapshot. Called on the
// connection's read goroutine; handlers should hand off quickly, e.g. into
// the viewer dispatcher.
type SnapshotHandler func(core.Snapshot)

// Client subscribes to the location feed and decodes snapshot pushes.
type Client struct {
	conn   *wsconn.Connection
	cfg    Config
	logger *slog.Logger

	// mu guards handler: Subscribe runs on the caller's goroutine while
	// handleMessage runs on the connection's read loop.
	mu      sync.RWMutex
	handler SnapshotHandler
}

// NewClient creates a feed client for the given server.
func NewClient(cfg Config) *Client {
	logger := slog.Default()
	c := &Client{
		conn:   wsconn.New(logger),
		cfg:    cfg,
		logger: logger,
	}
	c.conn.OnMessage(c.handleMessage)
	return c
}

// Connect dials the feed server.
func (c *Client) Connect() error {
	return c.conn.Dial(c.cfg.URL, c.cfg.Secret)
}

// Close disconnects from the feed server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Subscribe opens the snapshot stream for the configured namespace and
// waits for the server ack. The subscribe envelope is cached so a reconnect
// re-subscribes transparently.
func (c *Client) Subscribe(handler SnapshotHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	data, err := streaming.MarshalEnvelope(streaming.TypeSubscribe, streaming.SubscribePayload{
		Namespace: c.cfg.Namespace,
	})
	if err != nil {
		return err
	}

	c.conn.SetReplay(data)

	return c.conn.SendAndWait(data, streaming.TypeSubscribe, wsconn.AckTimeout)
}

// Publish streams a location record to the feed (fire-and-forget).
func (c *Client) Publish(rec core.LocationRecord) error {
	data, err := streaming.MarshalEnvelope(streaming.TypePublish, rec)
	if err != nil {
		return err
	}
	c.conn.Send(data)
	return nil
}

// Remove deletes the identifier's record from the roster.
func (c *Client) Remove(id core.Identifier) error {
	data, err := streaming.MarshalEnvelope(streaming.TypeRemove, streaming.RemovePayload{Identifier: id})
	if err != nil {
		return err
	}
	c.conn.Send(data)
	return nil
}

func (c *Client) handleMessage(raw []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Debug("Undecodable feed message", "raw", string(raw))
		return
	}

	switch env.Type {
	case streaming.TypeSnapshot:
		var payload streaming.SnapshotPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.logger.Warn("Malformed snapshot payload", "error", err)
			return
		}
		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(DecodeSnapshot(payload))
		}
	default:
		c.logger.Debug("Unhandled feed message", "type", env.Type)
	}
}

// EncodeSnapshot converts a roster snapshot into its wire form.
func EncodeSnapshot(namespace string, snap core.Snapshot) (streaming.SnapshotPayload, error) {
	payload := streaming.SnapshotPayload{
		Namespace: namespace,
		Records:   make(map[string]json.RawMessage, len(snap)),
	}
	for id, rec := range snap {
		raw, err := json.Marshal(rec)
		if err != nil {
			return streaming.SnapshotPayload{}, err
		}
		payload.Records[string(id)] = raw
	}
	return payload, nil
}

// DecodeSnapshot converts a wire snapshot into a core.Snapshot. A record
// that fails to decode is kept under its identifier with NaN coordinates so
// it counts as present but never renders; the rest of the snapshot is
// unaffected.
func DecodeSnapshot(payload streaming.SnapshotPayload) core.Snapshot {
	snap := make(core.Snapshot, len(payload.Records))
	for id, raw := range payload.Records {
		var rec core.LocationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			snap[core.Identifier(id)] = core.LocationRecord{
				Identifier: core.Identifier(id),
				Latitude:   math.NaN(),
				Longitude:  math.NaN(),
			}
			continue
		}
		rec.Identifier = core.Identifier(id)
		snap[core.Identifier(id)] = rec
	}
	return snap
}
