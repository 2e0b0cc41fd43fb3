package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// Kind identifies the primitive type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindData
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindData:    "data",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("engine: unknown value kind %q", s)
}

// Value is one entry as the engine persists it. The zero Value is invalid and
// stands for "no value".
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	d    []byte
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Data(d []byte) Value { return Value{kind: KindData, d: bytes.Clone(d)} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsData returns a copy of the payload of a Data value.
func (v Value) AsData() ([]byte, bool) {
	if v.kind != KindData {
		return nil, false
	}
	return bytes.Clone(v.d), true
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindData:
		return bytes.Equal(v.d, o.d)
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprint(v.b)
	case KindInt:
		return fmt.Sprint(v.i)
	case KindFloat:
		return fmt.Sprint(v.f)
	case KindString:
		return v.s
	case KindData:
		return fmt.Sprintf("<%d bytes>", len(v.d))
	}
	return "<nil>"
}

type valueJSON struct {
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value,omitempty"`
	Encoding string          `json:"encoding,omitempty"`
}

// encodingBase64 marks a string payload that is not valid UTF-8 and is
// stored as base64 of its raw bytes.
const encodingBase64 = "base64"

// MarshalJSON encodes the value as {"kind": ..., "value": ...}. Data payloads
// are base64 encoded. NaN and the infinities are written as the strings
// "NaN", "+Inf" and "-Inf". Strings that are not valid UTF-8 are written as
// base64 with "encoding": "base64".
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.kind.String()}
	var payload any
	switch v.kind {
	case KindBool:
		payload = v.b
	case KindInt:
		payload = v.i
	case KindFloat:
		payload = v.f
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			payload = strconv.FormatFloat(v.f, 'g', -1, 64)
		}
	case KindString:
		payload = v.s
		if !utf8.ValidString(v.s) {
			payload = base64.StdEncoding.EncodeToString([]byte(v.s))
			out.Encoding = encodingBase64
		}
	case KindData:
		payload = v.d
	default:
		return json.Marshal(out)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out.Value = raw
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return err
	}
	if kind == KindInvalid {
		*v = Value{}
		return nil
	}
	if len(in.Value) == 0 {
		return fmt.Errorf("engine: %s value without payload", kind)
	}

	out := Value{kind: kind}
	switch kind {
	case KindBool:
		err = json.Unmarshal(in.Value, &out.b)
	case KindInt:
		err = json.Unmarshal(in.Value, &out.i)
	case KindFloat:
		out.f, err = unmarshalFloat(in.Value)
	case KindString:
		out.s, err = unmarshalString(in.Value, in.Encoding)
	case KindData:
		err = json.Unmarshal(in.Value, &out.d)
	}
	if err != nil {
		return fmt.Errorf("engine: decode %s value: %w", kind, err)
	}
	*v = out
	return nil
}

func unmarshalFloat(raw json.RawMessage) (float64, error) {
	if raw[0] != '"' {
		var f float64
		err := json.Unmarshal(raw, &f)
		return f, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !math.IsNaN(f) && !math.IsInf(f, 0) {
		return 0, fmt.Errorf("finite float %q written as a string", s)
	}
	return f, nil
}

func unmarshalString(raw json.RawMessage, encoding string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	switch encoding {
	case "":
		return s, nil
	case encodingBase64:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("unknown string encoding %q", encoding)
}
