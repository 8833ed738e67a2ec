// Package dataformat builds the payload schemas of MSB events and functions.
//
// A DataFormat is a small JSON-Schema tree: the root descriptor under
// "dataObject" plus every named complex type the root needs. Three kinds of
// declarations are supported:
//
//	b := dataformat.NewBuilder(logger)
//
//	// simple type keywords (see MapPrimitive for the table)
//	df, _ := b.Build("int32", false)       // {"dataObject":{"type":"integer","format":"int32"}}
//	df, _ = b.Build("string", true)        // array of strings
//
//	// literal JSON schema, used verbatim
//	df, _ = b.Build(`{"type":"array","items":{"type":"integer","format":"int32"}}`, false)
//
//	// self-defined complex types, possibly cyclic
//	b.CreateComplexType("Position")
//	b.AddProperty("Position", "x", "double", false)
//	b.AddProperty("Position", "y", "double", false)
//	b.CreateComplexType("Path")
//	b.AddProperty("Path", "points", "Position", true)
//	df, _ = b.Build("Path", false)          // dataObject {$ref Path}, definitions Path + Position
//
// CheckDataFormat runs the declaration-time meta-schema check with
// gojsonschema; unknown type keywords pass through MapPrimitive untouched
// and are rejected there.
package dataformat
