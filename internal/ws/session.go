// Package ws implements the WebSocket session (§4.5): one goroutine pair
// per connection, a reader translating client frames into replies and a
// writer multiplexing those replies with Bus notifications.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/ingest"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		// §4.4: a request to /ws without an Upgrade header is a 426, not
		// gorilla's default 400.
		http.Error(w, reason.Error(), http.StatusUpgradeRequired)
	},
}

// ClientMessage is the inbound envelope a session's reader loop parses from
// each text frame.
type ClientMessage struct {
	MessageID string          `json:"message_id"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// ServerMessage is the outbound envelope; exactly one of the Ack/Error/
// SpanAdded-shaped fields is populated per §4.5's open tagged union.
type ServerMessage struct {
	MessageID *string     `json:"message_id,omitempty"`
	Type      string      `json:"type"`
	Error     string      `json:"error,omitempty"`
	NewSpans  [][2]string `json:"new_spans,omitempty"`
}

func ackMessage(messageID string) ServerMessage {
	return ServerMessage{MessageID: &messageID, Type: "ack"}
}

func errorMessage(messageID *string, reason string) ServerMessage {
	return ServerMessage{MessageID: messageID, Type: "error", Error: reason}
}

func spanAddedMessage(sa ingest.SpanAdded) ServerMessage {
	return ServerMessage{
		Type:     "span_added",
		NewSpans: [][2]string{{string(sa.TraceID), string(sa.SpanID)}},
	}
}

// Handler upgrades the request to a WebSocket per §4.5/§6: it writes the
// fpx-websocket-id response header before upgrading (gorilla requires this
// to happen through the upgrader's ResponseHeader parameter, since headers
// cannot be set after the 101 response starts), subscribes to b, and runs
// the reader/writer loop pair until the connection or ctx ends.
func Handler(b *bus.Bus, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		id := rand.Uint32()
		header := http.Header{"fpx-websocket-id": {strconv.FormatUint(uint64(id), 10)}}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		session := newSession(conn, b, logger, id)
		session.run(c.Request.Context())
	}
}

type session struct {
	conn     *websocket.Conn
	bus      *bus.Bus
	receiver *bus.Receiver
	logger   *slog.Logger
	id       uint32

	replies chan ServerMessage
}

func newSession(conn *websocket.Conn, b *bus.Bus, logger *slog.Logger, id uint32) *session {
	return &session{
		conn:     conn,
		bus:      b,
		receiver: b.Subscribe(),
		logger:   logger.With("ws_session_id", id),
		id:       id,
		replies:  make(chan ServerMessage, 16),
	}
}

// run drives the session's reader and writer loops until either the socket
// closes or ctx is cancelled (§5 cancellation: a server-wide shutdown
// signal must terminate sessions promptly).
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	defer s.bus.Unsubscribe(s.receiver)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket on cancellation unblocks the reader's ReadMessage,
	// so both loops end when ctx is cancelled.
	go func() {
		<-loopCtx.Done()
		s.conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writerLoop(loopCtx)
	}()

	s.readerLoop(loopCtx)
	cancel()
	<-done
}

// readerLoop implements §4.5's reader: parse each text frame as a
// ClientMessage, reply Ack on success or Error on parse failure. Binary
// frames are logged and ignored.
func (s *session) readerLoop(ctx context.Context) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Debug("websocket read ended", "error", err)
			return
		}

		if msgType == websocket.BinaryMessage {
			s.logger.Warn("ignoring unexpected binary frame")
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.enqueue(ctx, errorMessage(nil, "invalid message"))
			continue
		}
		s.enqueue(ctx, ackMessage(msg.MessageID))
	}
}

func (s *session) enqueue(ctx context.Context, m ServerMessage) {
	select {
	case s.replies <- m:
	case <-ctx.Done():
	}
}

// writerLoop implements §4.5's writer: the reply channel is checked with
// priority over the Bus receiver so acks/errors are never starved by
// broadcast traffic. A Lagged signal is logged only — the client has no way
// to recover the missed messages, so loss here is explicit, not retried.
func (s *session) writerLoop(ctx context.Context) {
	busCh := make(chan bus.Result)
	go func() {
		for {
			result := s.receiver.Recv()
			select {
			case busCh <- result:
			case <-ctx.Done():
				return
			}
			if result.Closed {
				return
			}
		}
	}()

	for {
		select {
		case reply := <-s.replies:
			if err := s.conn.WriteJSON(reply); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case reply := <-s.replies:
			if err := s.conn.WriteJSON(reply); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case result := <-busCh:
			switch {
			case result.Closed:
				return
			case result.Lag > 0:
				s.logger.Warn("websocket subscriber lagged", "skipped", result.Lag)
			default:
				sa, ok := result.Msg.(ingest.SpanAdded)
				if !ok {
					continue
				}
				if err := s.conn.WriteJSON(spanAddedMessage(sa)); err != nil {
					s.logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
