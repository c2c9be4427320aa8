package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 64 << 10
	// Outbound messages buffered per connection.
	sendBuffer = 256
)

// connection is one WebSocket client. A single reader goroutine handles
// client messages, one goroutine per execution pumps process events, and
// a single writer goroutine owns the socket for writing.
type connection struct {
	srv    *Server
	ws     *websocket.Conn
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	send       chan any
	writerDone chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	sessions map[string]struct{}
	pumps    sync.WaitGroup
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		srv:        s,
		ws:         ws,
		logger:     s.logger.With(zap.String("remote", r.RemoteAddr)),
		ctx:        ctx,
		cancel:     cancel,
		send:       make(chan any, sendBuffer),
		writerDone: make(chan struct{}),
		sessions:   make(map[string]struct{}),
	}
	if !s.register(c) {
		cancel()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	defer s.unregister(c)

	c.logger.Debug("websocket connected")
	c.serve()
	c.logger.Debug("websocket disconnected")
}

func (c *connection) serve() {
	go c.writeLoop()

	c.readLoop()

	// The connection is gone: stop its processes and forget its sessions.
	c.cancel()
	c.mu.Lock()
	sessions := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		sessions = append(sessions, id)
	}
	c.mu.Unlock()
	for _, id := range sessions {
		c.srv.engine.CloseSession(id)
	}

	c.pumps.Wait()
	close(c.send)
	<-c.writerDone
	_ = c.ws.Close()
}

// close asks the peer to close and bounds how long readLoop may wait for
// the reply.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.abortRead(time.Now().Add(time.Second))
	})
}

// abortRead makes a blocked read fail at t. It is safe to call from any
// goroutine.
func (c *connection) abortRead(t time.Time) {
	_ = c.ws.UnderlyingConn().SetReadDeadline(t)
}

func (c *connection) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				c.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		// Any message proves the peer is alive.
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(msg)
	}
}

func (c *connection) handle(msg clientMessage) {
	switch msg.Type {
	case msgExecute:
		sessionID := sessionOrDefault(msg.SessionID)
		c.track(sessionID)
		c.pumps.Add(1)
		go c.execute(sessionID, msg.Command)

	case msgCancel:
		c.srv.engine.Cancel(msg.processID())

	case msgCloseSession:
		sessionID := sessionOrDefault(msg.SessionID)
		c.mu.Lock()
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		c.srv.engine.CloseSession(sessionID)

	default:
		c.push(errorMessage{
			Type:    msgError,
			Message: "unknown message type: " + msg.Type,
			Kind:    "bad_request",
		})
	}
}

// execute runs one command and forwards its events in order.
func (c *connection) execute(sessionID, command string) {
	defer c.pumps.Done()

	proc, sub, err := c.srv.engine.Submit(c.ctx, sessionID, command)
	if err != nil {
		c.push(newErrorMessage(sessionID, err))
		return
	}

	c.push(startedMessage{
		Type:       msgStarted,
		SessionID:  sessionID,
		ProcessID:  proc.ID,
		Command:    sub.Command,
		Translated: sub.Translated,
	})
	// Drain until closed even if the client is gone.
	for ev := range proc.Events() {
		c.push(newOutputMessage(ev))
	}
}

// push queues a message for the writer. Messages are dropped once the
// writer has stopped.
func (c *connection) push(msg any) {
	select {
	case c.send <- msg:
	case <-c.writerDone:
	}
}

func (c *connection) track(sessionID string) {
	c.mu.Lock()
	c.sessions[sessionID] = struct{}{}
	c.mu.Unlock()
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.cancel()
				c.abortRead(time.Now())
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				c.abortRead(time.Now())
				return
			}
		}
	}
}
