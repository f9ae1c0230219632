// Package notify turns session status changes into sounds, desktop
// notifications and spoken replies.
package notify

import (
	"context"
	log "log/slog"
	"time"

	"voxscene/internal/session"
)

type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

type Indicator struct {
	BeepPath string
	Desktop  bool
	Ducker   Ducker
	Speak    func(text string) error

	beep    func(path string) error
	desktop func(ctx context.Context, title, body string) error

	updates chan session.Status
}

func NewIndicator(beepPath string, desktop bool) *Indicator {
	return &Indicator{
		BeepPath: beepPath,
		Desktop:  desktop,
		beep:     Beep,
		desktop:  Desktop,
		updates:  make(chan session.Status, 16),
	}
}

// Observe queues st for Run. It never blocks; when the queue is full the
// update is dropped.
func (ind *Indicator) Observe(st session.Status) {
	select {
	case ind.updates <- st:
	default:
		log.Warn("Indicator queue full, dropping status", "text", st.Text)
	}
}

func (ind *Indicator) Run(ctx context.Context) {
	prev := session.Idle
	for {
		select {
		case <-ctx.Done():
			if ind.Ducker != nil && prev == session.Recording {
				restoreCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_ = ind.Ducker.Restore(restoreCtx)
				cancel()
			}
			return
		case st := <-ind.updates:
			ind.show(ctx, prev, st)
			prev = st.State
		}
	}
}

func (ind *Indicator) show(ctx context.Context, prev session.State, st session.Status) {
	entering := st.State == session.Recording && prev != session.Recording
	leaving := prev == session.Recording && st.State != session.Recording

	if leaving && ind.Ducker != nil {
		if err := ind.Ducker.Restore(ctx); err != nil {
			log.Warn("Failed to restore playback volume", "err", err)
		}
	}

	if (entering || leaving) && ind.BeepPath != "" {
		if err := ind.beep(ind.BeepPath); err != nil {
			log.Warn("Failed to beep", "err", err)
		}
	}

	if entering && ind.Ducker != nil {
		if err := ind.Ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck playback", "err", err)
		}
	}

	if ind.Desktop {
		if err := ind.desktop(ctx, "vox", st.Text); err != nil {
			log.Debug("Desktop notification failed", "err", err)
		}
	}

	if ind.Speak != nil && st.State == session.Idle && st.Text != session.TextProcessed && st.Text != session.TextIdle {
		if err := ind.Speak(st.Text); err != nil {
			log.Error("Failed to voice out", "err", err)
		}
	}
}
