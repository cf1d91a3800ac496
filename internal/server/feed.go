package server

import (
	"encoding/json"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/locshare/locshare/internal/channel"
	"github.com/locshare/locshare/internal/feed"
	"github.com/locshare/locshare/pkg/core"
	"github.com/locshare/locshare/pkg/streaming"
)

const feedWriteWait = 10 * time.Second

var upgrader = ws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The secret query param is the access check; origins are not.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedConn is one websocket client on /feed. All writes go through sendCh
// so acks and snapshot pushes never interleave mid-frame.
type feedConn struct {
	server *Server
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}

	sub *channel.Buffered[core.Snapshot]
}

// handleFeed upgrades the connection and serves the envelope protocol:
// subscribe (acked, starts snapshot pushes), publish and remove
// (fire-and-forget).
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Secret != "" && r.URL.Query().Get("secret") != s.cfg.Secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Feed upgrade failed", "error", err)
		return
	}

	fc := &feedConn{
		server: s,
		conn:   conn,
		sendCh: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	s.feedClients.Inc()

	go fc.writeLoop()
	fc.readLoop()
}

func (fc *feedConn) writeLoop() {
	for {
		select {
		case <-fc.done:
			return
		case data := <-fc.sendCh:
			if err := fc.conn.SetWriteDeadline(time.Now().Add(feedWriteWait)); err != nil {
				return
			}
			if err := fc.conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (fc *feedConn) send(data []byte) {
	select {
	case fc.sendCh <- data:
	default:
		fc.server.logger.Warn("Feed client send buffer full, dropping message")
	}
}

func (fc *feedConn) readLoop() {
	defer fc.close()

	for {
		_, message, err := fc.conn.ReadMessage()
		if err != nil {
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			fc.server.logger.Debug("Undecodable feed message", "raw", string(message))
			continue
		}

		switch env.Type {
		case streaming.TypeSubscribe:
			fc.handleSubscribe(env.Payload)
		case streaming.TypePublish:
			fc.handlePublish(env.Payload)
		case streaming.TypeRemove:
			fc.handleRemove(env.Payload)
		default:
			fc.server.logger.Debug("Unhandled feed message", "type", env.Type)
		}
	}
}

func (fc *feedConn) handleSubscribe(payload json.RawMessage) {
	var sub streaming.SubscribePayload
	if err := json.Unmarshal(payload, &sub); err != nil {
		fc.server.logger.Warn("Malformed subscribe payload", "error", err)
		return
	}
	if sub.Namespace != fc.server.store.Namespace() {
		fc.server.logger.Warn("Subscribe for unknown namespace", "namespace", sub.Namespace)
		return
	}

	if ack, err := streaming.MarshalAck(streaming.TypeSubscribe); err == nil {
		fc.send(ack)
	}

	// A reconnect replays subscribe on a fresh connection, so at most one
	// pusher exists per feedConn.
	if fc.sub != nil {
		return
	}
	fc.sub = fc.server.store.Subscribe()

	go func() {
		for snap := range fc.sub.Receive() {
			payload, err := feed.EncodeSnapshot(fc.server.store.Namespace(), snap)
			if err != nil {
				fc.server.logger.Error("Snapshot encode failed", "error", err)
				continue
			}
			data, err := streaming.MarshalEnvelope(streaming.TypeSnapshot, payload)
			if err != nil {
				fc.server.logger.Error("Snapshot envelope failed", "error", err)
				continue
			}
			fc.send(data)
		}
	}()
}

func (fc *feedConn) handlePublish(payload json.RawMessage) {
	var rec core.LocationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		fc.server.logger.Warn("Malformed publish payload", "error", err)
		return
	}
	if rec.Identifier == "" {
		fc.server.logger.Warn("Publish without identifier dropped")
		return
	}
	fc.server.store.Publish(rec)
}

func (fc *feedConn) handleRemove(payload json.RawMessage) {
	var rm streaming.RemovePayload
	if err := json.Unmarshal(payload, &rm); err != nil {
		fc.server.logger.Warn("Malformed remove payload", "error", err)
		return
	}
	fc.server.store.Remove(rm.Identifier)
}

func (fc *feedConn) close() {
	close(fc.done)
	if fc.sub != nil {
		fc.server.store.Unsubscribe(fc.sub)
	}
	fc.server.feedClients.Dec()
	_ = fc.conn.Close()
}
