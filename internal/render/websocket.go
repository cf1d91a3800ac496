package render

import (
	"log/slog"
	"sync/atomic"

	"github.com/locshare/locshare/internal/geo"
	"github.com/locshare/locshare/internal/roster"
	"github.com/locshare/locshare/internal/wsconn"
	"github.com/locshare/locshare/pkg/core"
	"github.com/locshare/locshare/pkg/streaming"
)

// Config holds WebSocket renderer configuration.
type Config struct {
	URL    string
	Secret string
}

// WebSocket streams marker operations as JSON envelopes to a web map
// frontend. Marker IDs are assigned locally; the frontend only ever sees
// operations keyed by ID.
type WebSocket struct {
	conn         *wsconn.Connection
	cfg          Config
	nextMarkerID atomic.Uint64
}

type wsMarker struct {
	id uint64
}

// NewWebSocket creates a renderer streaming to the given frontend URL.
func NewWebSocket(cfg Config) *WebSocket {
	return &WebSocket{
		conn: wsconn.New(slog.Default()),
		cfg:  cfg,
	}
}

// Connect dials the frontend.
func (w *WebSocket) Connect() error {
	return w.conn.Dial(w.cfg.URL, w.cfg.Secret)
}

// Close disconnects from the frontend.
func (w *WebSocket) Close() error {
	return w.conn.Close()
}

func (w *WebSocket) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.MarshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	w.conn.Send(data)
	return nil
}

func markerOp(id uint64, pos core.Position, info core.MarkerInfo) streaming.MarkerOpPayload {
	x, y := geo.XY3857From4326(pos)
	return streaming.MarkerOpPayload{
		MarkerID:   id,
		Identifier: info.Identifier,
		Lat:        pos.Lat,
		Lon:        pos.Lon,
		X:          x,
		Y:          y,
		Accuracy:   info.Accuracy,
		Timestamp:  info.Timestamp,
	}
}

// CreateMarker assigns an auto-increment ID and streams the marker.
func (w *WebSocket) CreateMarker(pos core.Position, info core.MarkerInfo) (roster.MarkerHandle, error) {
	id := w.nextMarkerID.Add(1)
	if err := w.sendEnvelope(streaming.TypeCreateMarker, markerOp(id, pos, info)); err != nil {
		return nil, err
	}
	return &wsMarker{id: id}, nil
}

func (w *WebSocket) UpdateMarker(handle roster.MarkerHandle, pos core.Position, info core.MarkerInfo) error {
	m := handle.(*wsMarker)
	return w.sendEnvelope(streaming.TypeUpdateMarker, markerOp(m.id, pos, info))
}

func (w *WebSocket) RemoveMarker(handle roster.MarkerHandle) error {
	m := handle.(*wsMarker)
	return w.sendEnvelope(streaming.TypeRemoveMarker, streaming.RemoveMarkerPayload{MarkerID: m.id})
}

func (w *WebSocket) CenterView(pos core.Position, zoom int) error {
	x, y := geo.XY3857From4326(pos)
	return w.sendEnvelope(streaming.TypeCenterView, streaming.CenterViewPayload{
		Lat:  pos.Lat,
		Lon:  pos.Lon,
		X:    x,
		Y:    y,
		Zoom: zoom,
	})
}
