package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxscene/pkg/pcm"
	"voxscene/pkg/protocol"
	"voxscene/pkg/stt"
)

type stubSTT struct {
	text string
	err  error
	got  pcm.SampleBuffer
}

func (s *stubSTT) Transcribe(_ context.Context, buf pcm.SampleBuffer) (stt.Result, error) {
	s.got = buf
	return stt.Result{Text: s.text}, s.err
}

type stubNLU struct {
	body       string
	err        error
	transcript string
	scene      string
	catalog    []protocol.EventSchema
}

func (s *stubNLU) Analyze(_ context.Context, transcript, sceneContext string, catalog []protocol.EventSchema) (string, *protocol.Response, error) {
	s.transcript, s.scene, s.catalog = transcript, sceneContext, catalog
	if s.err != nil {
		return "", nil, s.err
	}
	resp, err := protocol.DecodeResponse(s.body)
	return s.body, resp, err
}

func envelopeBody(t *testing.T, wav []byte) []byte {
	t.Helper()
	body, err := protocol.BuildEnvelope(wav, "A kitchen", protocol.DefaultCatalog()).Marshal()
	require.NoError(t, err)
	return body
}

func speechWAV(t *testing.T) []byte {
	t.Helper()
	wav, err := pcm.EncodeWAV(pcm.SampleBuffer{Samples: []float32{0, 0.1, 0.2, 0.1}, Channels: 2, SampleRate: 22050})
	require.NoError(t, err)
	return wav
}

func post(t *testing.T, a *agent, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/agent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)
	return rec
}

func TestAgentAnswersEnvelope(t *testing.T) {
	speech := &stubSTT{text: "lights off"}
	brain := &stubNLU{body: `{"npc_response":"Done","events":[{"name":"SetLightState","parameters":{"area":"Kitchen","state":"off"}}]}`}
	a := &agent{stt: speech, nlu: brain}

	rec := post(t, a, envelopeBody(t, speechWAV(t)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, brain.body, rec.Body.String())

	assert.Equal(t, 2, speech.got.Channels)
	assert.Equal(t, 22050, speech.got.SampleRate)
	assert.Equal(t, 2, speech.got.Frames())
	assert.Equal(t, "lights off", brain.transcript)
	assert.Equal(t, "A kitchen", brain.scene)
	assert.Equal(t, protocol.DefaultCatalog(), brain.catalog)
}

func TestAgentEmptyTranscript(t *testing.T) {
	brain := &stubNLU{}
	a := &agent{stt: &stubSTT{}, nlu: brain}

	rec := post(t, a, envelopeBody(t, speechWAV(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	resp, err := protocol.DecodeResponse(rec.Body.String())
	require.NoError(t, err)
	assert.Empty(t, resp.Events)
	assert.Empty(t, brain.transcript, "analyzer must not be called")
}

func TestAgentRejectsBadInput(t *testing.T) {
	a := &agent{stt: &stubSTT{text: "x"}, nlu: &stubNLU{}}

	testCases := []struct {
		name string
		body string
	}{
		{name: "not json", body: "hello"},
		{name: "no audio", body: `{"scene_context":"x"}`},
		{name: "bad base64", body: `{"user_message":"***"}`},
		{name: "not wav", body: `{"user_message":"aGVsbG8="}`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			rec := post(t, a, []byte(testCase.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAgentUpstreamFailures(t *testing.T) {
	rec := post(t, &agent{stt: &stubSTT{err: errors.New("model crashed")}, nlu: &stubNLU{}}, envelopeBody(t, speechWAV(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = post(t, &agent{stt: &stubSTT{text: "x"}, nlu: &stubNLU{err: errors.New("quota")}}, envelopeBody(t, speechWAV(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = post(t, &agent{stt: &stubSTT{text: "x"}, nlu: &stubNLU{err: context.DeadlineExceeded}}, envelopeBody(t, speechWAV(t)))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestAgentRoutes(t *testing.T) {
	a := &agent{stt: &stubSTT{}, nlu: &stubNLU{}}

	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agent", strings.NewReader("")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	a.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
