// internal/models/fields.go
package models

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// StringField is an optional string. Absent or unusable values carry
// Known=false and marshal as JSON null.
type StringField struct {
	Value string
	Known bool
}

func String(v string) StringField {
	return StringField{Value: v, Known: true}
}

func (f StringField) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}

func (f *StringField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*f = StringField{}
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = StringField{Value: v, Known: true}
	return nil
}

// NumberField is an optional numeric value.
type NumberField struct {
	Value float64
	Known bool
}

func Number(v float64) NumberField {
	return NumberField{Value: v, Known: true}
}

func (f NumberField) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return jsonNull, nil
	}
	return json.Marshal(f.Value)
}

func (f *NumberField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*f = NumberField{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NumberField{Value: v, Known: true}
	return nil
}

// StringListField is an optional list of strings.
type StringListField struct {
	Values []string
	Known  bool
}

func StringList(vs []string) StringListField {
	return StringListField{Values: vs, Known: true}
}

func (f StringListField) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return jsonNull, nil
	}
	return json.Marshal(f.Values)
}

func (f *StringListField) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, jsonNull) {
		*f = StringListField{}
		return nil
	}
	var vs []string
	if err := json.Unmarshal(data, &vs); err != nil {
		return err
	}
	*f = StringListField{Values: vs, Known: true}
	return nil
}
