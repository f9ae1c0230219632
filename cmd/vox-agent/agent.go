package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"voxscene/pkg/pcm"
	"voxscene/pkg/protocol"
	"voxscene/pkg/stt"
)

const (
	maxEnvelopeBytes = 32 << 20
	notUnderstood    = `{"npc_response":"Sorry, I did not catch that.","events":[]}`
)

type transcriber interface {
	Transcribe(ctx context.Context, buf pcm.SampleBuffer) (stt.Result, error)
}

type analyzer interface {
	Analyze(ctx context.Context, transcript, sceneContext string, catalog []protocol.EventSchema) (string, *protocol.Response, error)
}

type agent struct {
	stt     transcriber
	nlu     analyzer
	timeout time.Duration
}

func (a *agent) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent", a.handleAgent)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (a *agent) handleAgent(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := log.With("request_id", requestID)

	ctx := r.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var env protocol.Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		logger.Warn("Bad envelope", "err", err)
		http.Error(w, "invalid envelope: "+err.Error(), http.StatusBadRequest)
		return
	}
	if env.UserMessage == "" {
		http.Error(w, "user_message is empty", http.StatusBadRequest)
		return
	}

	wav, err := env.Audio()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	buf, err := pcm.DecodeWAV(wav)
	if err != nil {
		http.Error(w, "user_message is not a wav container: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info("Received recording", "frames", buf.Frames(), "rate", buf.SampleRate, "channels", buf.Channels)

	res, err := a.stt.Transcribe(ctx, buf)
	if err != nil {
		logger.Error("Failed to transcribe", "err", err)
		http.Error(w, "transcription failed", http.StatusInternalServerError)
		return
	}

	logger.Info("Transcribed", "text", res.Text, "lang", res.Language)

	if res.Text == "" {
		writeJSON(w, notUnderstood)
		return
	}

	body, resp, err := a.nlu.Analyze(ctx, res.Text, env.SceneContext, env.EventDefinitions)
	if err != nil {
		logger.Error("Failed to call API", "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, "analysis failed", status)
		return
	}

	logger.Info("Analyzed", "reply", resp.NPCResponse, "events", len(resp.Events))
	writeJSON(w, body)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
