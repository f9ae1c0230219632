package protocol

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindRaw:
		return "raw"
	}
	return "unknown"
}

// Value is a dynamically typed event parameter. It keeps the wire text so
// integer and float kinds stay distinguishable until extraction.
type Value struct {
	kind Kind
	str  string
	b    bool
	i    int64
	f    float64
	raw  string
}

func valueFromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.String:
		return Value{kind: KindString, str: r.Str, raw: r.Raw}
	case gjson.True, gjson.False:
		return Value{kind: KindBool, b: r.Bool(), raw: r.Raw}
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return Value{kind: KindInt, i: i, f: float64(i), raw: r.Raw}
			}
		}
		return Value{kind: KindFloat, f: r.Num, raw: r.Raw}
	case gjson.JSON:
		return Value{kind: KindRaw, raw: string(pretty.Ugly([]byte(r.Raw)))}
	}
	return Value{kind: KindNull, raw: "null"}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float reports the numeric value for both int and float kinds.
func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindInt || v.kind == KindFloat
}

// Raw returns the compact wire text of the value.
func (v Value) Raw() string { return v.raw }

// String stringifies the value: strings as-is, null as "", everything else
// as its wire text.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNull:
		return ""
	}
	return v.raw
}
