// Package validation checks event and function payload values against their
// MSB data formats before they go on the wire.
package validation

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
)

// Validator validates payload values. It never fails loudly: a mismatch is
// reported as false and described in the debug log.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a validator logging through logger.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate reports whether value conforms to df. A nil format has no payload
// and accepts anything. Values are normalized through JSON first, so structs,
// typed slices and any numeric kind behave like decoded JSON.
func (v *Validator) Validate(df *dataformat.DataFormat, value any) bool {
	if df == nil || df.DataObject == nil {
		return true
	}

	normalized, err := normalize(value)
	if err != nil {
		v.logger.Debug("Value is not JSON encodable", "error", err)
		return false
	}
	return v.validate(df, df.DataObject, normalized)
}

func (v *Validator) validate(df *dataformat.DataFormat, d *dataformat.Descriptor, value any) bool {
	switch {
	case d.IsArray():
		elems, ok := value.([]any)
		if !ok {
			v.logger.Debug("Expected array", "value", value)
			return false
		}
		if d.Items == nil {
			return true
		}
		for i, elem := range elems {
			if !v.validate(df, d.Items, elem) {
				v.logger.Debug("Array element invalid", "index", i)
				return false
			}
		}
		return true
	case d.Ref != "":
		return v.validateStructure(df, d.Ref, value)
	default:
		return v.validatePrimitive(d, value)
	}
}

// validateStructure runs gojsonschema on an ephemeral document that points
// at ref and carries every named definition of df.
func (v *Validator) validateStructure(df *dataformat.DataFormat, ref string, value any) bool {
	schema := map[string]any{
		"$ref":        ref,
		"definitions": df.DefinitionsDocument(),
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(value))
	if err != nil {
		v.logger.Debug("Structural validation could not run", "ref", ref, "error", err)
		return false
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		v.logger.Debug("Value does not match data format", "ref", ref, "errors", strings.Join(msgs, "; "))
		return false
	}
	return true
}

func (v *Validator) validatePrimitive(d *dataformat.Descriptor, value any) bool {
	var ok bool
	switch d.Type {
	case "":
		return true
	case dataformat.TypeInteger:
		f, isNum := value.(float64)
		ok = isNum && math.Trunc(f) == f
	case dataformat.TypeNumber:
		// whole values still have the number kind, so 12 is a valid float
		_, ok = value.(float64)
	case dataformat.TypeString:
		_, ok = value.(string)
	case dataformat.TypeBoolean:
		_, ok = value.(bool)
	case dataformat.TypeObject:
		_, ok = value.(map[string]any)
	default:
		v.logger.Debug("Unknown data type", "type", d.Type)
		return false
	}

	if !ok {
		v.logger.Debug("Value does not match data type", "type", d.Type, "format", d.Format, "value", value)
	}
	return ok
}

func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
