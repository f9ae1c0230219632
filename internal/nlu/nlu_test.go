package nlu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxscene/pkg/protocol"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeOpenAI(t *testing.T, content string, seen *chatRequest) openai.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}

		reply := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)

	return openai.NewClient(
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
}

func TestAnalyzeReturnsValidatedResponse(t *testing.T) {
	var seen chatRequest
	client := fakeOpenAI(t, "```json\n{\"npc_response\":\"Done\",\"events\":[{\"name\":\"SetLightState\",\"parameters\":{\"area\":\"Kitchen\",\"state\":false}}]}\n```", &seen)

	a := NewAnalyzer(client, "test-model")
	body, resp, err := a.Analyze(context.Background(), "turn off the kitchen lights", "A flat with a Kitchen.", protocol.DefaultCatalog())
	require.NoError(t, err)

	assert.Equal(t, `{"npc_response":"Done","events":[{"name":"SetLightState","parameters":{"area":"Kitchen","state":false}}]}`, body)
	assert.Equal(t, "Done", resp.NPCResponse)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "SetLightState", resp.Events[0].Name)
	state, ok := resp.Events[0].Parameters["state"].Bool()
	assert.True(t, ok)
	assert.False(t, state)

	assert.Equal(t, "test-model", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "A flat with a Kitchen.")
	assert.Contains(t, seen.Messages[0].Content, protocol.EventSetWallColor)
	assert.Equal(t, "turn off the kitchen lights", seen.Messages[1].Content)
}

func TestAnalyzeCompactsIndentedReply(t *testing.T) {
	client := fakeOpenAI(t, "{\n  \"npc_response\": \"Ok, done\",\n  \"events\": [\n    { \"name\": \"SetPlantsVisible\", \"parameters\": { \"area\": \"Hall\", \"visible\": true } }\n  ]\n}\n", nil)

	body, resp, err := NewAnalyzer(client, "").Analyze(context.Background(), "show the plants", "", nil)
	require.NoError(t, err)

	assert.Equal(t, `{"npc_response":"Ok, done","events":[{"name":"SetPlantsVisible","parameters":{"area":"Hall","visible":true}}]}`, body)
	require.Len(t, resp.Events, 1)

	again, err := protocol.DecodeResponse(body)
	require.NoError(t, err)
	assert.Equal(t, resp, again)
}

func TestAnalyzeRejectsMalformedReply(t *testing.T) {
	client := fakeOpenAI(t, `{"events":"nope"}`, nil)

	_, _, err := NewAnalyzer(client, "").Analyze(context.Background(), "hello", "", nil)

	var decodeErr *protocol.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestAnalyzeRejectsEmptyInput(t *testing.T) {
	client := fakeOpenAI(t, "", nil)
	a := NewAnalyzer(client, "")

	_, _, err := a.Analyze(context.Background(), "   ", "", nil)
	assert.Error(t, err)

	_, _, err = a.Analyze(context.Background(), "hello", "", nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
}
