// Package session runs the record, send, decode and dispatch cycle. All
// session state lives on the goroutine running Run; Toggle and Submit post
// commands to it and the backend exchange reports back over a channel.
package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"voxscene/internal/backend"
	"voxscene/internal/dispatch"
	"voxscene/pkg/pcm"
	"voxscene/pkg/protocol"
)

var (
	ErrNotRunning = errors.New("session is not running")
	ErrBusy       = errors.New("session busy")
)

type Recorder interface {
	Start() error
	Stop() (pcm.SampleBuffer, error)
}

type Backend interface {
	Send(ctx context.Context, env protocol.Envelope) backend.Result
}

type Dispatcher interface {
	Dispatch(resp *protocol.Response) dispatch.Report
}

type Config struct {
	Recorder     Recorder
	Backend      Backend
	Dispatcher   Dispatcher
	SceneContext string
	Catalog      []protocol.EventSchema
	// OnStatus is called from the session goroutine on every status change.
	OnStatus func(Status)
}

type commandKind int

const (
	cmdToggle commandKind = iota
	cmdSubmit
)

type command struct {
	kind  commandKind
	buf   pcm.SampleBuffer
	reply chan outcome
}

type outcome struct {
	st  Status
	err error
}

type Session struct {
	cfg Config

	cmds    chan command
	results chan backend.Result

	// owned by Run
	state State

	mu     sync.RWMutex
	status Status
}

func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, errors.New("session needs a backend")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("session needs a dispatcher")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = protocol.DefaultCatalog()
	}

	return &Session{
		cfg:     cfg,
		cmds:    make(chan command),
		results: make(chan backend.Result, 1),
		status:  Status{State: Idle, Text: TextIdle},
	}, nil
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Toggle starts a recording when idle and ends it, sending the audio,
// when recording. It is ignored while a request is in flight.
func (s *Session) Toggle(ctx context.Context) (Status, error) {
	return s.post(ctx, command{kind: cmdToggle})
}

// Submit sends an already captured buffer as if it had just been recorded.
// It fails with ErrBusy unless the session is idle.
func (s *Session) Submit(ctx context.Context, buf pcm.SampleBuffer) (Status, error) {
	return s.post(ctx, command{kind: cmdSubmit, buf: buf})
}

func (s *Session) post(ctx context.Context, cmd command) (Status, error) {
	cmd.reply = make(chan outcome, 1)

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return s.Status(), fmt.Errorf("%w: %w", ErrNotRunning, ctx.Err())
	}

	select {
	case out := <-cmd.reply:
		return out.st, out.err
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

func (s *Session) Run(ctx context.Context) error {
	log.Debug("Session started")

	for {
		select {
		case <-ctx.Done():
			if s.state == Recording && s.cfg.Recorder != nil {
				if _, err := s.cfg.Recorder.Stop(); err != nil {
					log.Warn("Failed to stop recorder", "err", err)
				}
			}
			return ctx.Err()

		case cmd := <-s.cmds:
			var err error
			switch cmd.kind {
			case cmdToggle:
				s.toggle(ctx)
			case cmdSubmit:
				err = s.submit(ctx, cmd.buf)
			}
			cmd.reply <- outcome{st: s.Status(), err: err}

		case res := <-s.results:
			s.complete(res)
		}
	}
}

func (s *Session) toggle(ctx context.Context) {
	switch s.state {
	case Idle, Error:
		if s.cfg.Recorder == nil {
			s.fail("no recorder configured")
			return
		}
		if err := s.cfg.Recorder.Start(); err != nil {
			s.fail(fmt.Sprintf("recorder: %v", err))
			return
		}
		s.set(Recording, "")

	case Recording:
		buf, err := s.cfg.Recorder.Stop()
		if err != nil {
			s.fail(fmt.Sprintf("recorder: %v", err))
			return
		}
		s.send(ctx, buf)

	default:
		log.Warn("Toggle ignored while request is in flight", "state", s.state)
	}
}

func (s *Session) submit(ctx context.Context, buf pcm.SampleBuffer) error {
	if s.state != Idle && s.state != Error {
		log.Warn("Submit rejected, session busy", "state", s.state)
		return fmt.Errorf("%w: %s", ErrBusy, s.state)
	}
	s.send(ctx, buf)
	return nil
}

func (s *Session) send(ctx context.Context, buf pcm.SampleBuffer) {
	wav, err := pcm.EncodeWAV(buf)
	if err != nil {
		s.fail(err.Error())
		return
	}

	env := protocol.BuildEnvelope(wav, s.cfg.SceneContext, s.cfg.Catalog)
	s.set(Sending, "")

	log.Info("Sending recording", "seconds", float64(buf.Frames())/float64(buf.SampleRate), "wav_bytes", len(wav))

	go func() {
		res := s.cfg.Backend.Send(ctx, env)
		select {
		case s.results <- res:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) complete(res backend.Result) {
	if !res.OK {
		s.fail(diagnostic(res))
		return
	}

	s.set(Processing, "")

	resp, err := protocol.DecodeResponse(res.Body)
	if err != nil {
		s.fail(err.Error())
		return
	}

	report := s.cfg.Dispatcher.Dispatch(resp)
	log.Info("Response dispatched", "events", len(resp.Events), "applied", report.Applied(), "warnings", len(report.Warnings()))

	text := resp.NPCResponse
	if text == "" {
		text = TextProcessed
	}
	s.set(Idle, text)
}

// fail publishes the error status and leaves the session ready to record again.
func (s *Session) fail(diag string) {
	log.Error("Session cycle failed", "state", s.state, "err", diag)
	s.state = Idle
	s.publish(Status{State: Error, Text: errorPrefix + diag})
}

func (s *Session) set(state State, text string) {
	s.state = state
	if text == "" {
		text = state.defaultText()
	}
	s.publish(Status{State: state, Text: text})
}

func (s *Session) publish(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	log.Debug("Session status", "state", st.State, "text", st.Text)

	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(st)
	}
}

func diagnostic(res backend.Result) string {
	if res.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", res.StatusCode)
	}
	if res.Err != nil {
		return res.Err.Error()
	}
	return "request failed"
}
