package dataformat

// JSON-Schema primitive types used by the MSB data formats.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Simple type keywords accepted when declaring events, functions,
// configuration parameters and complex type properties.
const (
	KeywordString   = "string"
	KeywordInt32    = "int32"
	KeywordInt64    = "int64"
	KeywordInteger  = "integer"
	KeywordInt      = "int"
	KeywordDouble   = "double"
	KeywordFloat    = "float"
	KeywordNumber   = "number"
	KeywordDateTime = "date-time"
	KeywordBoolean  = "boolean"
	KeywordByte     = "byte"
)

var primitives = map[string]Descriptor{
	KeywordString:   {Type: TypeString},
	KeywordInt32:    {Type: TypeInteger, Format: "int32"},
	KeywordInt64:    {Type: TypeInteger, Format: "int64"},
	KeywordInteger:  {Type: TypeInteger, Format: "int64"},
	KeywordInt:      {Type: TypeInteger, Format: "int64"},
	KeywordDouble:   {Type: TypeNumber, Format: "double"},
	KeywordFloat:    {Type: TypeNumber, Format: "float"},
	KeywordNumber:   {Type: TypeNumber, Format: "double"},
	KeywordDateTime: {Type: TypeString, Format: "date-time"},
	KeywordBoolean:  {Type: TypeBoolean},
	KeywordByte:     {Type: TypeString, Format: "byte"},
}

// widened lists keywords that are silently widened to a concrete format.
var widened = map[string]string{
	KeywordInteger: KeywordInt64,
	KeywordInt:     KeywordInt64,
	KeywordNumber:  KeywordDouble,
}

// MapPrimitive maps a simple type keyword to its descriptor.
// Unknown keywords pass through as {type: keyword} so that data format
// checks reject them instead of coercing. The empty keyword means no payload
// and yields nil.
func MapPrimitive(keyword string) *Descriptor {
	if keyword == "" {
		return nil
	}
	if d, ok := primitives[keyword]; ok {
		return &d
	}
	return &Descriptor{Type: keyword}
}

// IsPrimitive reports whether keyword is part of the fixed mapping table.
func IsPrimitive(keyword string) bool {
	_, ok := primitives[keyword]
	return ok
}

// WidenedTo returns the concrete keyword a generic keyword is widened to.
func WidenedTo(keyword string) (string, bool) {
	target, ok := widened[keyword]
	return target, ok
}
