// Package scenelink carries scene commands to the rendering engine over a
// websocket and reads back its acknowledgements.
package scenelink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"voxscene/internal/scene"
)

const (
	DefaultFrom      = "vox"
	DefaultReconnect = 2 * time.Second
)

type Config struct {
	URL       string
	From      string
	Reconnect time.Duration
	Dialer    *ws.Dialer
	OnAck     func(Ack)
}

// Message is the wire form of a scene command.
type Message struct {
	From string `json:"from"`
	scene.Command
}

// Ack is what the engine sends back for each applied command.
type Ack struct {
	OK     bool   `json:"ok"`
	Target string `json:"target,omitempty"`
	Area   string `json:"area,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Link struct {
	sock  *socket
	from  string
	onAck func(Ack)
}

func Dial(ctx context.Context, cfg Config) (*Link, error) {
	if cfg.URL == "" {
		return nil, errors.New("scene link url is empty")
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = DefaultReconnect
	}

	sock, err := dialSocket(ctx, cfg.URL, cfg.Dialer, cfg.Reconnect)
	if err != nil {
		return nil, fmt.Errorf("dial scene link %s: %w", cfg.URL, err)
	}

	return &Link{sock: sock, from: cfg.From, onAck: cfg.OnAck}, nil
}

// Apply sends cmd to the engine. It does not wait for the acknowledgement.
func (l *Link) Apply(cmd scene.Command) error {
	payload, err := json.Marshal(Message{From: l.from, Command: cmd})
	if err != nil {
		return fmt.Errorf("marshal scene command: %w", err)
	}
	if err := l.sock.write(payload); err != nil {
		return fmt.Errorf("write scene command: %w", err)
	}
	return nil
}

// Run reads acknowledgements until ctx is done, reconnecting whenever the
// connection breaks.
func (l *Link) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.sock.drop() })
	defer stop()

	for {
		in := l.sock.read()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch in.kind {
		case connClosed, readFailure:
			if in.kind == readFailure {
				log.Error("Failed to read scene link", "err", in.err)
			}
			log.Warn("Trying to reconnect scene link", "url", l.sock.url)
			if err := l.sock.reconnect(ctx); err != nil {
				return err
			}
			log.Info("Scene link reconnected", "url", l.sock.url)

		case readOK:
			var ack Ack
			if err := json.Unmarshal(in.msg, &ack); err != nil {
				log.Warn("Failed to parse scene ack", "msg", string(in.msg), "err", err)
				continue
			}
			if !ack.OK {
				log.Warn("Engine rejected scene command", "target", ack.Target, "area", ack.Area, "error", ack.Error)
			} else {
				log.Debug("Engine acknowledged scene command", "target", ack.Target, "area", ack.Area)
			}
			if l.onAck != nil {
				l.onAck(ack)
			}
		}
	}
}

func (l *Link) Close() error {
	return l.sock.close()
}
