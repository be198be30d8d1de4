package ws

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/ingest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestWSServer(t *testing.T, b *bus.Bus) *httptest.Server {
	t.Helper()
	router := gin.New()
	router.GET("/ws", Handler(b, nil))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, *http.Response) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, resp
}

func TestUpgradeSetsWebsocketIDHeader(t *testing.T) {
	b := bus.New()
	srv := newTestWSServer(t, b)

	conn, resp := dial(t, srv)
	defer conn.Close()

	idHeader := resp.Header.Get("fpx-websocket-id")
	require.NotEmpty(t, idHeader)
	_, err := strconv.ParseUint(idHeader, 10, 32)
	assert.NoError(t, err)
}

func TestRejectsPlainHTTPWith426(t *testing.T) {
	b := bus.New()
	srv := newTestWSServer(t, b)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestClientMessageReceivesAck(t *testing.T) {
	b := bus.New()
	srv := newTestWSServer(t, b)
	conn, _ := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message_id": "m1"}))

	var reply ServerMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "ack", reply.Type)
	require.NotNil(t, reply.MessageID)
	assert.Equal(t, "m1", *reply.MessageID)
}

func TestMalformedMessageReceivesError(t *testing.T) {
	b := bus.New()
	srv := newTestWSServer(t, b)
	conn, _ := dial(t, srv)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var reply ServerMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Nil(t, reply.MessageID)
}

func TestBusPublishDeliversSpanAddedToClient(t *testing.T) {
	b := bus.New()
	srv := newTestWSServer(t, b)
	conn, _ := dial(t, srv)
	defer conn.Close()

	// Give the session time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	b.Publish(ingest.SpanAdded{TraceID: "01", SpanID: "02"})

	var reply ServerMessage
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "span_added", reply.Type)
	require.Len(t, reply.NewSpans, 1)
	assert.Equal(t, [2]string{"01", "02"}, reply.NewSpans[0])
}
