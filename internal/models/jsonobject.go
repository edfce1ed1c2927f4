package models

import (
	"bytes"
	"encoding/json"
)

// Field is one key of a flat exported object
type Field struct {
	Key   string
	Value interface{}
}

// Object is a flat record whose key order is preserved on output.
// Artifact writers use it for both JSON and CSV.
type Object []Field

// Flattener is implemented by every record that is written as an artifact
type Flattener interface {
	Flatten() Object
}

// Get returns the value stored under key
func (o Object) Get(key string) (interface{}, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the fields in order
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
