package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Params maps parameter names to their dynamically typed values.
type Params map[string]Value

type Event struct {
	Name       string
	Parameters Params
}

// Response is the decoded backend reply.
type Response struct {
	NPCResponse string
	Events      []Event
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var ErrEmptyResponse = errors.New("empty response body")

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// DecodeResponse parses a backend reply. A structurally malformed document is
// rejected as a whole; a missing events list decodes as empty. When an object
// repeats a key, the last occurrence wins at every level.
func DecodeResponse(raw string) (*Response, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &DecodeError{Err: ErrEmptyResponse}
	}
	if !gjson.Valid(raw) {
		return nil, decodeErrorf("invalid json")
	}

	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, decodeErrorf("top level is %s, want object", typeName(root))
	}

	resp := &Response{Events: []Event{}}

	switch npc := lastField(root, "npc_response"); npc.Type {
	case gjson.String:
		resp.NPCResponse = npc.Str
	case gjson.Null:
	default:
		return nil, decodeErrorf("npc_response is %s, want string", typeName(npc))
	}

	events := lastField(root, "events")
	switch {
	case !events.Exists() || events.Type == gjson.Null:
		return resp, nil
	case !events.IsArray():
		return nil, decodeErrorf("events is %s, want array", typeName(events))
	}

	for i, ev := range events.Array() {
		event, err := decodeEvent(ev)
		if err != nil {
			return nil, decodeErrorf("events[%d]: %w", i, err)
		}
		resp.Events = append(resp.Events, event)
	}

	return resp, nil
}

func decodeEvent(ev gjson.Result) (Event, error) {
	if !ev.IsObject() {
		return Event{}, fmt.Errorf("event is %s, want object", typeName(ev))
	}

	var event Event
	switch name := lastField(ev, "name"); name.Type {
	case gjson.String:
		event.Name = name.Str
	case gjson.Null:
	default:
		return Event{}, fmt.Errorf("name is %s, want string", typeName(name))
	}

	params := lastField(ev, "parameters")
	event.Parameters = make(Params)
	switch {
	case !params.Exists() || params.Type == gjson.Null:
		return event, nil
	case !params.IsObject():
		return Event{}, fmt.Errorf("parameters is %s, want object", typeName(params))
	}

	params.ForEach(func(key, value gjson.Result) bool {
		event.Parameters[key.String()] = valueFromResult(value)
		return true
	})

	return event, nil
}

// lastField is obj.Get(key) with the last duplicate taking precedence.
func lastField(obj gjson.Result, key string) gjson.Result {
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			found = v
		}
		return true
	})
	return found
}

func typeName(r gjson.Result) string {
	switch {
	case !r.Exists():
		return "missing"
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	case r.IsBool():
		return "bool"
	}
	switch r.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.Null:
		return "null"
	}
	return "unknown"
}
