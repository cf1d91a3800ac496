package streaming

import (
	"encoding/json"

	"github.com/locshare/locshare/pkg/core"
)

// Message type constants for the feed and renderer streaming protocols.
const (
	TypeSubscribe    = "subscribe"
	TypeSnapshot     = "snapshot"
	TypePublish      = "publish"
	TypeRemove       = "remove"
	TypeCreateMarker = "create_marker"
	TypeUpdateMarker = "update_marker"
	TypeRemoveMarker = "remove_marker"
	TypeCenterView   = "center_view"
)

// Envelope wraps all messages sent over a WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SubscribePayload opens a feed subscription for a namespace. The server
// answers with the current snapshot and pushes every subsequent one.
type SubscribePayload struct {
	Namespace string `json:"namespace"`
}

// SnapshotPayload carries a full roster replacement. Records are kept raw
// so one malformed entry cannot poison the rest of the snapshot.
type SnapshotPayload struct {
	Namespace string                     `json:"namespace"`
	Records   map[string]json.RawMessage `json:"records"`
}

// RemovePayload deletes a single identifier from the roster.
type RemovePayload struct {
	Identifier core.Identifier `json:"identifier"`
}

// MarkerOpPayload carries a create or update marker operation to the map
// frontend. Positions are sent both in WGS84 and projected web mercator so
// the tile layer needs no client-side reprojection.
type MarkerOpPayload struct {
	MarkerID   uint64          `json:"markerId"`
	Identifier core.Identifier `json:"identifier"`
	Lat        float64         `json:"lat"`
	Lon        float64         `json:"lon"`
	X          float64         `json:"x"` // EPSG:3857
	Y          float64         `json:"y"` // EPSG:3857
	Accuracy   *float64        `json:"accuracy,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

// RemoveMarkerPayload deletes a marker by its assigned ID.
type RemoveMarkerPayload struct {
	MarkerID uint64 `json:"markerId"`
}

// CenterViewPayload recenters the map viewport.
type CenterViewPayload struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom int     `json:"zoom"`
}
