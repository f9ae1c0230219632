package scenelink

import (
	"context"
	"errors"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

var errNotConnected = errors.New("scene link not connected")

const writeTimeout = 5 * time.Second

type incomeKind uint

const (
	connClosed incomeKind = iota
	readFailure
	readOK
)

type income struct {
	kind incomeKind
	msg  []byte
	err  error
}

// socket owns the current connection. Writes are serialized; reads happen
// only from the link's Run goroutine.
type socket struct {
	mu     sync.Mutex
	conn   *ws.Conn
	url    string
	dialer *ws.Dialer
	reconn time.Duration
}

func dialSocket(ctx context.Context, url string, dialer *ws.Dialer, reconn time.Duration) (*socket, error) {
	log.Debug("Dialing scene link", "url", url)

	if dialer == nil {
		dialer = ws.DefaultDialer
	}
	s := &socket{url: url, dialer: dialer, reconn: reconn}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	return s, nil
}

func (s *socket) write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return errNotConnected
	}
	log.Debug("Write scene link", "msg", string(payload))
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(ws.TextMessage, payload)
}

func (s *socket) current() *ws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *socket) read() income {
	conn := s.current()
	if conn == nil {
		return income{kind: connClosed, err: errNotConnected}
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return income{kind: connClosed, err: err}
		}
		return income{kind: readFailure, err: err}
	}

	log.Debug("Read scene link", "msg", string(msg))
	return income{kind: readOK, msg: msg}
}

// reconnect drops the current connection and dials until it succeeds or ctx ends.
func (s *socket) reconnect(ctx context.Context) error {
	s.drop()

	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			return nil
		}
		log.Debug("Scene link dial failed", "url", s.url, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconn):
		}
	}
}

func (s *socket) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *socket) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := s.conn.Close()
	s.conn = nil
	return err
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
