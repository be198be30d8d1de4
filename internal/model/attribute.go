package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ValueKind tags the variant carried by an AttributeValue.
type ValueKind string

const (
	KindString       ValueKind = "string"
	KindBool         ValueKind = "bool"
	KindInt          ValueKind = "int"
	KindDouble       ValueKind = "double"
	KindBytes        ValueKind = "bytes"
	KindArray        ValueKind = "array"
	KindKeyValueList ValueKind = "kvlist"
)

// AttributeValue is a tagged union over OTLP's AnyValue variants. The zero
// value is not meaningful on its own; always construct through the NewXxx
// helpers or via JSON decode.
type AttributeValue struct {
	Kind ValueKind

	Str    string
	Bool   bool
	Int    int64
	Double float64
	Bytes  []byte
	Array  []*AttributeValue
	KVList AttributeMap
}

// AttributeMap is an attribute map keyed by attribute name. A key mapped to a
// nil *AttributeValue is an explicit null, distinct from the key being
// entirely absent from the map.
type AttributeMap map[string]*AttributeValue

func NewString(s string) *AttributeValue     { return &AttributeValue{Kind: KindString, Str: s} }
func NewBool(b bool) *AttributeValue         { return &AttributeValue{Kind: KindBool, Bool: b} }
func NewInt(i int64) *AttributeValue         { return &AttributeValue{Kind: KindInt, Int: i} }
func NewDouble(f float64) *AttributeValue    { return &AttributeValue{Kind: KindDouble, Double: f} }
func NewBytes(b []byte) *AttributeValue      { return &AttributeValue{Kind: KindBytes, Bytes: b} }
func NewArray(v []*AttributeValue) *AttributeValue {
	return &AttributeValue{Kind: KindArray, Array: v}
}
func NewKeyValueList(m AttributeMap) *AttributeValue {
	return &AttributeValue{Kind: KindKeyValueList, KVList: m}
}

// wireAttributeValue is the {type, value} object used on the wire, per §9.
type wireAttributeValue struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v *AttributeValue) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	var raw json.RawMessage
	var err error
	switch v.Kind {
	case KindString:
		raw, err = json.Marshal(v.Str)
	case KindBool:
		raw, err = json.Marshal(v.Bool)
	case KindInt:
		raw, err = json.Marshal(v.Int)
	case KindDouble:
		raw, err = json.Marshal(v.Double)
	case KindBytes:
		raw, err = json.Marshal(base64.StdEncoding.EncodeToString(v.Bytes))
	case KindArray:
		raw, err = json.Marshal(v.Array)
	case KindKeyValueList:
		raw, err = json.Marshal(v.KVList)
	default:
		return nil, fmt.Errorf("model: unknown attribute value kind %q", v.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireAttributeValue{Type: v.Kind, Value: raw})
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var w wireAttributeValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v.Kind = w.Type
	switch w.Type {
	case KindString:
		return json.Unmarshal(w.Value, &v.Str)
	case KindBool:
		return json.Unmarshal(w.Value, &v.Bool)
	case KindInt:
		return json.Unmarshal(w.Value, &v.Int)
	case KindDouble:
		return json.Unmarshal(w.Value, &v.Double)
	case KindBytes:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("model: decoding bytes attribute: %w", err)
		}
		v.Bytes = b
		return nil
	case KindArray:
		return json.Unmarshal(w.Value, &v.Array)
	case KindKeyValueList:
		return json.Unmarshal(w.Value, &v.KVList)
	default:
		return fmt.Errorf("model: unknown attribute value kind %q", w.Type)
	}
}
