package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locshare/locshare/internal/feed"
	"github.com/locshare/locshare/internal/store"
	"github.com/locshare/locshare/pkg/core"
	"github.com/locshare/locshare/pkg/streaming"
)

func newTestServer(t *testing.T, secret string) (*Server, *httptest.Server, *store.Store) {
	st := store.New("locshare", nil)
	srv := New(st, Config{Secret: secret})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts, st
}

func TestHealthcheck(t *testing.T) {
	_, ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "locshare", body["namespace"])
	assert.EqualValues(t, 0, body["feedClients"])
}

func TestPublish_JSON(t *testing.T) {
	_, ts, st := newTestServer(t, "")

	body := `{"identifier": "alice", "latitude": 52.52, "longitude": 13.405, "timestamp": 1700000000000}`
	resp, err := http.Post(ts.URL+"/publish", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := st.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 52.52, snap["alice"].Latitude)
}

func TestPublish_TextLine(t *testing.T) {
	_, ts, st := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/publish", "text/plain", strings.NewReader("bob,5,6,10"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	snap := st.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap["bob"].Accuracy)
	assert.Equal(t, 10.0, *snap["bob"].Accuracy)
}

func TestPublish_Invalid(t *testing.T) {
	_, ts, _ := newTestServer(t, "")

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"bad json", "application/json", `{"latitude": "nope"}`},
		{"missing identifier", "application/json", `{"latitude": 1, "longitude": 2}`},
		{"bad line", "text/plain", "only-one-field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/publish", tt.contentType, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestPublish_Delete(t *testing.T) {
	_, ts, st := newTestServer(t, "")
	st.Publish(core.LocationRecord{Identifier: "alice", Latitude: 1, Longitude: 2})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/publish?identifier=alice", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, st.Snapshot())
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/feed" + query
}

func dialFeed(t *testing.T, ts *httptest.Server, query string) *ws.Conn {
	conn, _, err := ws.DefaultDialer.Dial(wsURL(ts, query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *ws.Conn) streaming.Envelope {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(message, &env))
	return env
}

func subscribe(t *testing.T, conn *ws.Conn) {
	data, err := streaming.MarshalEnvelope(streaming.TypeSubscribe, streaming.SubscribePayload{Namespace: "locshare"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))

	// ack comes before the initial snapshot
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var ack streaming.AckMessage
	require.NoError(t, json.Unmarshal(message, &ack))
	require.Equal(t, "ack", ack.Type)
	require.Equal(t, streaming.TypeSubscribe, ack.For)
}

func readSnapshot(t *testing.T, conn *ws.Conn) core.Snapshot {
	env := readEnvelope(t, conn)
	require.Equal(t, streaming.TypeSnapshot, env.Type)

	var payload streaming.SnapshotPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return feed.DecodeSnapshot(payload)
}

func TestFeed_SecretRejected(t *testing.T) {
	_, ts, _ := newTestServer(t, "s3cret")

	_, resp, err := ws.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFeed_SubscribeAndPush(t *testing.T) {
	_, ts, st := newTestServer(t, "s3cret")
	st.Publish(core.LocationRecord{Identifier: "alice", Latitude: 10, Longitude: 20, Timestamp: 1})

	conn := dialFeed(t, ts, "?secret=s3cret")
	subscribe(t, conn)

	// initial snapshot
	snap := readSnapshot(t, conn)
	require.Len(t, snap, 1)
	assert.Equal(t, 10.0, snap["alice"].Latitude)

	// a store mutation pushes a fresh snapshot
	st.Publish(core.LocationRecord{Identifier: "bob", Latitude: 5, Longitude: 6, Timestamp: 2})
	snap = readSnapshot(t, conn)
	require.Len(t, snap, 2)
}

func TestFeed_PublishAndRemoveEnvelopes(t *testing.T) {
	_, ts, st := newTestServer(t, "")

	conn := dialFeed(t, ts, "")

	rec := core.LocationRecord{Identifier: "carol", Latitude: 1, Longitude: 2, Timestamp: 3}
	data, err := streaming.MarshalEnvelope(streaming.TypePublish, rec)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))

	require.Eventually(t, func() bool {
		return len(st.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	data, err = streaming.MarshalEnvelope(streaming.TypeRemove, streaming.RemovePayload{Identifier: "carol"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(ws.TextMessage, data))

	require.Eventually(t, func() bool {
		return len(st.Snapshot()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestFeed_SubscriberUnregisteredOnClose(t *testing.T) {
	_, ts, st := newTestServer(t, "")

	conn := dialFeed(t, ts, "")
	subscribe(t, conn)

	require.Eventually(t, func() bool {
		return st.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return st.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)
}
