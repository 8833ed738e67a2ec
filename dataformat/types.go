package dataformat

import (
	"bytes"
	"encoding/json"
	"sort"
)

// RootKey is the key of the root descriptor inside a rendered DataFormat.
const RootKey = "dataObject"

// RefPrefix prefixes every reference to a named definition.
const RefPrefix = "#/definitions/"

// Descriptor is a JSON-Schema-like type descriptor: a primitive
// {type, format}, an array {type: array, items}, or an object reference {$ref}.
type Descriptor struct {
	Type       string                 `json:"type,omitempty"`
	Format     string                 `json:"format,omitempty"`
	Items      *Descriptor            `json:"items,omitempty"`
	Ref        string                 `json:"$ref,omitempty"`
	Properties map[string]*Descriptor `json:"properties,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := &Descriptor{
		Type:   d.Type,
		Format: d.Format,
		Items:  d.Items.Clone(),
		Ref:    d.Ref,
	}
	if d.Properties != nil {
		c.Properties = make(map[string]*Descriptor, len(d.Properties))
		for k, v := range d.Properties {
			c.Properties[k] = v.Clone()
		}
	}
	return c
}

// IsArray reports whether the descriptor describes an array.
func (d *Descriptor) IsArray() bool {
	return d != nil && d.Type == TypeArray
}

// RefName returns the definition name a $ref points at, or "".
func (d *Descriptor) RefName() string {
	if d == nil || len(d.Ref) <= len(RefPrefix) || d.Ref[:len(RefPrefix)] != RefPrefix {
		return ""
	}
	return d.Ref[len(RefPrefix):]
}

// Definition is a named complex type as it appears inside a DataFormat.
type Definition struct {
	Type       string                 `json:"type"`
	Properties map[string]*Descriptor `json:"properties"`
}

func (d *Definition) clone() *Definition {
	c := &Definition{Type: d.Type, Properties: make(map[string]*Descriptor, len(d.Properties))}
	for k, v := range d.Properties {
		c.Properties[k] = v.Clone()
	}
	return c
}

// DataFormat is the schema of an event or function payload: a root
// descriptor plus every named definition the root transitively needs.
// Each definition appears exactly once.
type DataFormat struct {
	DataObject  *Descriptor
	Definitions map[string]*Definition

	// literal holds a caller-supplied root schema that is rendered verbatim
	literal json.RawMessage
}

// Literal returns the verbatim root schema when the format was built from one.
func (df *DataFormat) Literal() json.RawMessage {
	return df.literal
}

// DefinitionNames returns the sorted names of all named definitions.
func (df *DataFormat) DefinitionNames() []string {
	names := make([]string, 0, len(df.Definitions))
	for name := range df.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (df *DataFormat) Clone() *DataFormat {
	if df == nil {
		return nil
	}
	c := &DataFormat{
		DataObject: df.DataObject.Clone(),
		literal:    bytes.Clone(df.literal),
	}
	if df.Definitions != nil {
		c.Definitions = make(map[string]*Definition, len(df.Definitions))
		for k, v := range df.Definitions {
			c.Definitions[k] = v.clone()
		}
	}
	return c
}

// MarshalJSON renders the format as one object: the named definitions plus
// the root under "dataObject".
func (df *DataFormat) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(df.Definitions)+1)
	for name, def := range df.Definitions {
		out[name] = def
	}
	if len(df.literal) > 0 {
		out[RootKey] = df.literal
	} else {
		out[RootKey] = df.DataObject
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a rendered DataFormat. The root is kept verbatim so a
// caller-built schema survives a round trip untouched.
func (df *DataFormat) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := DataFormat{Definitions: make(map[string]*Definition)}
	for key, value := range raw {
		if key == RootKey {
			var root Descriptor
			if err := json.Unmarshal(value, &root); err != nil {
				return err
			}
			parsed.DataObject = &root
			parsed.literal = bytes.Clone(value)
			continue
		}
		var def Definition
		if err := json.Unmarshal(value, &def); err != nil {
			return err
		}
		parsed.Definitions[key] = &def
	}
	*df = parsed
	return nil
}

// DefinitionsDocument returns the named definitions as a JSON-Schema
// "definitions" value, the root entry removed.
func (df *DataFormat) DefinitionsDocument() map[string]any {
	defs := make(map[string]any, len(df.Definitions))
	for name, def := range df.Definitions {
		defs[name] = def.clone()
	}
	return defs
}
