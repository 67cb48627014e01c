// Package cipher implements the data-driven transcoding engine behind the
// decoder tool: declarative cipher modules, the encoder, the tokenizer and the
// recursive decoder, plus the dictionary used to rank ambiguous decodings.
//
// Everything in this package is a pure function over immutable inputs. A
// *Module or *Dictionary may be shared freely between goroutines once built.
package cipher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one key of a mapping together with its alternative values.
type Entry struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// Mapping is an ordered association from a token to one or more values.
// Keys keep the order in which they were defined.
type Mapping struct {
	keys   []string
	values map[string][]string
}

// NewMapping builds a mapping from entries. A repeated key replaces the
// earlier values but keeps its original position.
func NewMapping(entries ...Entry) *Mapping {
	m := &Mapping{values: make(map[string][]string, len(entries))}
	for _, e := range entries {
		m.set(e.Key, e.Values)
	}
	return m
}

func (m *Mapping) set(key string, values []string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append([]string{}, values...)
}

func (m *Mapping) add(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append(m.values[key], value)
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in definition order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Lookup returns the values of key. The returned slice must not be modified.
func (m *Mapping) Lookup(key string) ([]string, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Entries returns a copy of the mapping in definition order.
func (m *Mapping) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Key: k, Values: append([]string{}, m.values[k]...)})
	}
	return out
}

// Invert builds the structural inverse: every value becomes a key whose
// values are all the keys that produced it, in definition order.
// Collisions accumulate; nothing is dropped.
func (m *Mapping) Invert() *Mapping {
	inv := NewMapping()
	if m == nil {
		return inv
	}
	for _, k := range m.keys {
		for _, v := range m.values[k] {
			inv.add(v, k)
		}
	}
	return inv
}

// MarshalJSON encodes the mapping as an object, preserving key order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseMapping parses a JSON object of token -> value|[values]. Scalar values
// become singleton lists, null becomes an empty list and numbers keep their
// literal text. An empty or null document yields an empty mapping.
func ParseMapping(data []byte) (*Mapping, error) {
	m := NewMapping()
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return m, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("mapping must be a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("mapping key must be a string")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mapping value for %q: %w", key, err)
		}
		values, err := normalizeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("mapping value for %q: %w", key, err)
		}
		m.set(key, values)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeValue coerces a mapping value into a list of strings.
func normalizeValue(raw json.RawMessage) ([]string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := scalarString(t)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Settings governs how a mapping is applied.
type Settings struct {
	// ReverseDirection marks a mapping stored plaintext -> code.
	ReverseDirection bool `json:"reverse_direction"`

	// CharacterSeparators are the candidate separators between tokens of a
	// word. Never empty; "" means no separator.
	CharacterSeparators []string `json:"character_separator"`

	// WordSeparators are the candidate separators between words. Never empty.
	WordSeparators []string `json:"word_separator"`

	// ChunkSize is the fixed token length used when there is no character
	// separator. 0 when unset.
	ChunkSize int `json:"chunk_size,omitempty"`
}

// normalized fills the defaults and removes duplicate separators.
func (s Settings) normalized() Settings {
	s.CharacterSeparators = uniqueOrDefault(s.CharacterSeparators, "")
	s.WordSeparators = uniqueOrDefault(s.WordSeparators, " ")
	if s.ChunkSize < 0 {
		s.ChunkSize = 0
	}
	return s
}

func uniqueOrDefault(list []string, def string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, def)
	}
	return out
}

// Module is a named, immutable cipher definition.
type Module struct {
	Name        string
	Description string
	Mapping     *Mapping
	Settings    Settings

	decodeMap *Mapping
	encodeMap *Mapping
}

// NewModule builds a module and precomputes its effective maps. The mapping
// must not be modified afterwards.
func NewModule(name string, mapping *Mapping, settings Settings) *Module {
	if mapping == nil {
		mapping = NewMapping()
	}
	m := &Module{
		Name:     name,
		Mapping:  mapping,
		Settings: settings.normalized(),
	}
	if m.Settings.ReverseDirection {
		m.decodeMap = mapping.Invert()
		m.encodeMap = mapping
	} else {
		m.decodeMap = mapping
		m.encodeMap = mapping.Invert()
	}
	return m
}

// DecodeMap returns the ciphertext token -> plaintext expansions map.
func (m *Module) DecodeMap() *Mapping {
	if m == nil {
		return nil
	}
	return m.decodeMap
}

// EncodeMap returns the plaintext symbol -> ciphertext tokens map.
func (m *Module) EncodeMap() *Mapping {
	if m == nil {
		return nil
	}
	return m.encodeMap
}

// moduleFile is the on-disk shape of a module definition.
type moduleFile struct {
	Encoding    json.RawMessage `json:"encoding"`
	Mapping     json.RawMessage `json:"mapping"`
	Settings    *settingsFile   `json:"settings"`
	Usage       *settingsFile   `json:"usage"`
	Description string          `json:"description"`
}

type settingsFile struct {
	ReverseDirection   bool          `json:"reverse_direction"`
	CharacterSeparator separatorList `json:"character_separator"`
	WordSeparator      separatorList `json:"word_separator"`
	ChunkSize          chunkSize     `json:"chunk_size"`
}

// separatorList accepts a string, null, or a list of strings and nulls.
// A nil element stands for the "unset" separator.
type separatorList []*string

func (l *separatorList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = separatorList{nil}
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []*string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = separatorList{&s}
		return nil
	}
}

func (l separatorList) resolve(unset string) []string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		if s == nil {
			out = append(out, unset)
			continue
		}
		out = append(out, *s)
	}
	return out
}

// chunkSize accepts an integer or a list of integers; the first positive
// value wins.
type chunkSize int

func (c *chunkSize) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var list []int
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
	} else {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		list = []int{n}
	}
	*c = 0
	for _, n := range list {
		if n > 0 {
			*c = chunkSize(n)
			break
		}
	}
	return nil
}

// ParseModule parses a JSON module definition. A definition without an
// encoding is valid and produces an empty module.
func ParseModule(name string, data []byte) (*Module, error) {
	var f moduleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse module %q: %w", name, err)
	}

	raw := f.Encoding
	if len(raw) == 0 {
		raw = f.Mapping
	}
	mapping, err := ParseMapping(raw)
	if err != nil {
		return nil, fmt.Errorf("parse module %q: %w", name, err)
	}

	sf := f.Settings
	if sf == nil {
		sf = f.Usage
	}
	var settings Settings
	if sf != nil {
		settings = Settings{
			ReverseDirection:    sf.ReverseDirection,
			CharacterSeparators: sf.CharacterSeparator.resolve(""),
			WordSeparators:      sf.WordSeparator.resolve(" "),
			ChunkSize:           int(sf.ChunkSize),
		}
	}

	m := NewModule(name, mapping, settings)
	m.Description = strings.TrimSpace(f.Description)
	return m, nil
}

// MarshalJSON encodes the module in the same shape ParseModule accepts.
func (m *Module) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Encoding    *Mapping `json:"encoding"`
		Settings    Settings `json:"settings"`
	}{
		Name:        m.Name,
		Description: m.Description,
		Encoding:    m.Mapping,
		Settings:    m.Settings,
	})
}
