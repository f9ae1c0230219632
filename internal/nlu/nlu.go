// Package nlu asks a chat model to turn a transcript into a scene response:
// a short spoken reply plus the events to apply.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/tidwall/pretty"

	"voxscene/pkg/protocol"
)

const DefaultModel = string(openai.ChatModelGPT5Nano)

const systemPrompt = `
You are VOX-SCENE, the voice controller of a smart-home scene.
Convert the user's utterance into scene events.

GENERAL RULES:
1. Output ONLY JSON. No markdown.
2. Use only the events listed below, with exactly their parameter names.
3. Use only areas mentioned in the scene description.
4. Never invent values the user did not ask for.
5. "npc_response" is one short sentence confirming what you did, in the user's language.

OUTPUT FORMAT:
{
  "npc_response": "<string>",
  "events": [ { "name": "<event>", "parameters": { ... } } ]
}

PARAMETER TYPES:
- string: JSON string
- bool: JSON true/false
- float: JSON number
- color: "#RRGGBB"

If nothing applies, return an empty "events" array and say so in "npc_response".
`

var ErrNoContent = errors.New("model returned no content")

type Analyzer struct {
	client openai.Client
	model  string
}

func NewAnalyzer(client openai.Client, model string) *Analyzer {
	if model == "" {
		model = DefaultModel
	}
	return &Analyzer{client: client, model: model}
}

// Analyze returns the model's reply, validated as a scene response. body is
// the compacted JSON text ready to send back to the client.
func (a *Analyzer) Analyze(ctx context.Context, transcript, sceneContext string, catalog []protocol.EventSchema) (body string, resp *protocol.Response, err error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil, errors.New("empty transcript")
	}

	prompt, err := buildPrompt(sceneContext, catalog)
	if err != nil {
		return "", nil, err
	}

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(transcript),
		},
		Model: openai.ChatModel(a.model),
	})
	if err != nil {
		return "", nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices in response")
	}

	content := stripFence(completion.Choices[0].Message.Content)
	if content == "" {
		return "", nil, ErrNoContent
	}

	log.Debug("Processed", "data", content)

	resp, err = protocol.DecodeResponse(content)
	if err != nil {
		return "", nil, fmt.Errorf("model reply: %w (raw: %s)", err, content)
	}

	return string(pretty.Ugly([]byte(content))), resp, nil
}

func buildPrompt(sceneContext string, catalog []protocol.EventSchema) (string, error) {
	events, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal event catalog: %w", err)
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\nSCENE:\n")
	if sceneContext == "" {
		b.WriteString("(no description)")
	} else {
		b.WriteString(sceneContext)
	}
	b.WriteString("\n\nEVENTS:\n")
	b.Write(events)
	b.WriteString("\n")
	return b.String(), nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
