package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column is one named scalar of a result row.
type Column struct {
	Name  string
	Value any
}

// Row keeps backend column order. It encodes as a JSON object.
type Row []Column

func (r Row) Get(name string) (any, bool) {
	for _, c := range r {
		if strings.EqualFold(c.Name, name) {
			return c.Value, true
		}
	}
	return nil, false
}

func (r Row) Names() []string {
	names := make([]string, 0, len(r))
	for _, c := range r {
		names = append(names, c.Name)
	}
	return names
}

func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, c := range r {
		m[c.Name] = c.Value
	}
	return m
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.Name, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}

	row := Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected column name, got %v", tok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}

		row = append(row, Column{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = row
	return nil
}
