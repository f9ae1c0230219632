package main

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"voxscene/internal/ipc"
	"voxscene/internal/session"
	"voxscene/pkg/audioconv"
)

type controller struct {
	session     *session.Session
	maxDuration time.Duration
}

func (c *controller) handle(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case ipc.CmdToggle:
		st, err := c.session.Toggle(ctx)
		return reply(st, err)

	case ipc.CmdStatus:
		return reply(c.session.Status(), nil)

	case ipc.CmdReplay:
		if msg.Path == "" {
			return ipc.Reply{Error: "replay needs a path"}
		}
		buf, err := audioconv.LoadFile(ctx, msg.Path, audioconv.Options{MaxDuration: c.maxDuration})
		if err != nil {
			log.Error("Failed to load replay file", "path", msg.Path, "err", err)
			return ipc.Reply{Error: fmt.Sprintf("load %s: %v", msg.Path, err)}
		}
		st, err := c.session.Submit(ctx, buf)
		if err != nil {
			log.Warn("Replay rejected", "path", msg.Path, "err", err)
		}
		return reply(st, err)

	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{Error: fmt.Sprintf("unknown command %q", msg.Cmd)}
	}
}

func reply(st session.Status, err error) ipc.Reply {
	r := ipc.Reply{OK: err == nil, State: st.State.String(), Text: st.Text}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
