package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
)

// EventSchema describes one event the backend may emit. Parameters are
// human-readable type hints, they are not enforced on either side.
type EventSchema struct {
	Name       string            `json:"name"`
	Parameters map[string]string `json:"parameters"`
}

// Envelope is the outbound request document.
type Envelope struct {
	// UserMessage carries the base64 WAV recording, not text.
	UserMessage      string        `json:"user_message"`
	SceneContext     string        `json:"scene_context"`
	EventDefinitions []EventSchema `json:"event_definitions"`
	ChatEventHistory string        `json:"chat_event_history"`
}

func BuildEnvelope(wav []byte, sceneContext string, catalog []EventSchema) Envelope {
	defs := make([]EventSchema, 0, len(catalog))
	for _, s := range catalog {
		params := maps.Clone(s.Parameters)
		if params == nil {
			params = map[string]string{}
		}
		defs = append(defs, EventSchema{Name: s.Name, Parameters: params})
	}

	return Envelope{
		UserMessage:      base64.StdEncoding.EncodeToString(wav),
		SceneContext:     sceneContext,
		EventDefinitions: defs,
		ChatEventHistory: "",
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Audio returns the WAV container carried in UserMessage.
func (e Envelope) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(e.UserMessage)
	if err != nil {
		return nil, fmt.Errorf("decode user_message: %w", err)
	}
	return data, nil
}

const (
	EventSetLightState     = "SetLightState"
	EventSetLightIntensity = "SetLightIntensity"
	EventSetWallColor      = "SetWallColor"
	EventAddPlant          = "AddPlant"
	EventRemovePlant       = "RemovePlant"
	EventTogglePlant       = "TogglePlant"
)

// DefaultCatalog is the event catalog shipped with this release.
func DefaultCatalog() []EventSchema {
	return []EventSchema{
		{Name: EventSetLightState, Parameters: map[string]string{"area": "string", "state": "boolean or string (on/off)"}},
		{Name: EventSetLightIntensity, Parameters: map[string]string{"area": "string", "intensity": "float"}},
		{Name: EventSetWallColor, Parameters: map[string]string{"area": "string", "color": "string (hex codes)"}},
		{Name: EventAddPlant, Parameters: map[string]string{"area": "string", "plantType": "string", "position": "string"}},
		{Name: EventRemovePlant, Parameters: map[string]string{"area": "string", "plantType": "string"}},
		{Name: EventTogglePlant, Parameters: map[string]string{"area": "string", "add": "boolean", "plantType": "string"}},
	}
}
