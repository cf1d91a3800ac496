package render

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locshare/locshare/pkg/core"
	"github.com/locshare/locshare/pkg/streaming"
)

type envelopeLog struct {
	mu        sync.Mutex
	envelopes []streaming.Envelope
}

func (e *envelopeLog) add(env streaming.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envelopes = append(e.envelopes, env)
}

func (e *envelopeLog) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.envelopes)
}

func (e *envelopeLog) all() []streaming.Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]streaming.Envelope(nil), e.envelopes...)
}

// frontendServer records every envelope a renderer streams to it.
func frontendServer(t *testing.T) (*httptest.Server, *envelopeLog) {
	t.Helper()
	el := &envelopeLog{}
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			el.add(env)
		}
	}))
	return srv, el
}

func TestWebSocket_MarkerOps(t *testing.T) {
	srv, el := frontendServer(t)
	defer srv.Close()

	r := NewWebSocket(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), Secret: "s3cret"})
	require.NoError(t, r.Connect())
	defer r.Close()

	alice, err := r.CreateMarker(core.Position{Lat: 52.52, Lon: 13.405}, core.MarkerInfo{Identifier: "alice", Timestamp: 100})
	require.NoError(t, err)
	bob, err := r.CreateMarker(core.Position{Lat: 48.85, Lon: 2.35}, core.MarkerInfo{Identifier: "bob", Timestamp: 200})
	require.NoError(t, err)

	require.NoError(t, r.UpdateMarker(alice, core.Position{Lat: 52.53, Lon: 13.41}, core.MarkerInfo{Identifier: "alice", Timestamp: 300}))
	require.NoError(t, r.RemoveMarker(bob))
	require.NoError(t, r.CenterView(core.Position{Lat: 52.53, Lon: 13.41}, 16))

	require.Eventually(t, func() bool {
		return el.count() == 5
	}, 5*time.Second, 20*time.Millisecond)

	envs := el.all()
	require.Equal(t, streaming.TypeCreateMarker, envs[0].Type)
	require.Equal(t, streaming.TypeCreateMarker, envs[1].Type)
	require.Equal(t, streaming.TypeUpdateMarker, envs[2].Type)
	require.Equal(t, streaming.TypeRemoveMarker, envs[3].Type)
	require.Equal(t, streaming.TypeCenterView, envs[4].Type)

	var first, second, update streaming.MarkerOpPayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &first))
	require.NoError(t, json.Unmarshal(envs[1].Payload, &second))
	require.NoError(t, json.Unmarshal(envs[2].Payload, &update))

	// IDs are assigned in creation order; the update reuses alice's ID.
	assert.Equal(t, uint64(1), first.MarkerID)
	assert.Equal(t, core.Identifier("alice"), first.Identifier)
	assert.Equal(t, uint64(2), second.MarkerID)
	assert.Equal(t, core.Identifier("bob"), second.Identifier)
	assert.Equal(t, uint64(1), update.MarkerID)
	assert.InDelta(t, 52.53, update.Lat, 1e-9)

	var removed streaming.RemoveMarkerPayload
	require.NoError(t, json.Unmarshal(envs[3].Payload, &removed))
	assert.Equal(t, uint64(2), removed.MarkerID)

	var center streaming.CenterViewPayload
	require.NoError(t, json.Unmarshal(envs[4].Payload, &center))
	assert.Equal(t, 16, center.Zoom)
	assert.NotZero(t, center.X)
	assert.NotZero(t, center.Y)
}
