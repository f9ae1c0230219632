package dispatch

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"voxscene/pkg/protocol"
)

var (
	ErrMissing  = errors.New("missing parameter")
	ErrCoercion = errors.New("cannot coerce parameter")
)

// ParamError names the parameter an extraction failed on.
type ParamError struct {
	Key  string
	Want string
	Got  protocol.Value
	Err  error
}

func (e *ParamError) Error() string {
	if errors.Is(e.Err, ErrMissing) {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v to %s from %s %q", e.Key, e.Err, e.Want, e.Got.Kind(), e.Got.Raw())
}

func (e *ParamError) Unwrap() error { return e.Err }

var decimalRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// String accepts any present value, stringified. An empty result counts as missing.
func String(p protocol.Params, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", &ParamError{Key: key, Want: "string", Err: ErrMissing}
	}
	s := v.String()
	if s == "" {
		return "", &ParamError{Key: key, Want: "string", Got: v, Err: ErrMissing}
	}
	return s, nil
}

// OptionalString is String without the missing error.
func OptionalString(p protocol.Params, key string) string {
	s, _ := String(p, key)
	return s
}

// Float accepts int and float wire kinds, or a string holding a decimal number.
// Values outside the finite float64 range are rejected.
func Float(p protocol.Params, key string) (float64, error) {
	v, ok := p[key]
	if !ok || v.IsNull() {
		return 0, &ParamError{Key: key, Want: "float", Got: v, Err: ErrMissing}
	}
	if f, ok := v.Float(); ok && finite(f) {
		return f, nil
	}
	if s, ok := v.Str(); ok && decimalRe.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) {
			return f, nil
		}
	}
	return 0, &ParamError{Key: key, Want: "float", Got: v, Err: ErrCoercion}
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

// Bool accepts a native boolean or, case-insensitively, true/1/on and false/0/off.
func Bool(p protocol.Params, key string) (bool, error) {
	v, ok := p[key]
	if !ok || v.IsNull() {
		return false, &ParamError{Key: key, Want: "bool", Got: v, Err: ErrMissing}
	}
	if b, ok := v.Bool(); ok {
		return b, nil
	}
	switch strings.ToLower(v.String()) {
	case "true", "1", "on":
		return true, nil
	case "false", "0", "off":
		return false, nil
	}
	return false, &ParamError{Key: key, Want: "bool", Got: v, Err: ErrCoercion}
}

// LightState is Bool plus an on/off reading that tolerates surrounding
// whitespace. Older backend schemas emitted either representation for the
// light state, so only that key goes through here.
func LightState(p protocol.Params, key string) (bool, error) {
	b, err := Bool(p, key)
	if err == nil || errors.Is(err, ErrMissing) {
		return b, err
	}
	if s, ok := p[key].Str(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on":
			return true, nil
		case "off":
			return false, nil
		}
	}
	return false, err
}
