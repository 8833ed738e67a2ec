package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
)

func build(t *testing.T, b *dataformat.Builder, typeName string, isArray bool) *dataformat.DataFormat {
	t.Helper()
	df, err := b.Build(typeName, isArray)
	require.NoError(t, err)
	return df
}

func TestValidate_Primitives(t *testing.T) {
	b := dataformat.NewBuilder(nil)
	v := NewValidator(nil)

	tests := []struct {
		name    string
		keyword string
		value   any
		want    bool
	}{
		{"string accepts text", "string", "Hello World!", true},
		{"string rejects bool", "string", true, false},
		{"int32 accepts whole number", "int32", 12, true},
		{"int32 rejects fraction", "int32", 12.5, false},
		{"int64 rejects text", "int64", "Hello", false},
		{"integer accepts int64 kind", "integer", int64(1 << 40), true},
		{"float accepts whole number", "float", 12, true},
		{"double accepts fraction", "double", 3.14, true},
		{"number rejects bool", "number", false, false},
		{"number rejects numeric text", "number", "12", false},
		{"date-time accepts text", "date-time", "2011-10-05T14:48:00.000Z", true},
		{"date-time rejects number", "date-time", 2011, false},
		{"boolean accepts bool", "boolean", false, true},
		{"boolean rejects text", "boolean", "true", false},
		{"byte is a string", "byte", "aGVsbG8=", true},
		{"null is not a string", "string", nil, false},
		{"unknown keyword never matches", "int65", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(build(t, b, tt.keyword, false), tt.value))
		})
	}
}

func TestValidate_NoPayload(t *testing.T) {
	v := NewValidator(nil)
	assert.True(t, v.Validate(nil, "anything"))
	assert.True(t, v.Validate(nil, nil))
}

func TestValidate_Arrays(t *testing.T) {
	b := dataformat.NewBuilder(nil)
	v := NewValidator(nil)
	df := build(t, b, "int32", true)

	assert.True(t, v.Validate(df, []int{1, 2, 3}))
	assert.True(t, v.Validate(df, []any{}), "empty array is valid")
	assert.False(t, v.Validate(df, []any{1, "two", 3}))
	assert.False(t, v.Validate(df, 1), "scalar is not an array")
}

func TestValidate_LiteralFormat(t *testing.T) {
	b := dataformat.NewBuilder(nil)
	v := NewValidator(nil)
	df := build(t, b, `{"type":"array","items":{"type":"string"}}`, false)

	assert.True(t, v.Validate(df, []string{"a", "b"}))
	assert.False(t, v.Validate(df, []any{"a", 1}))
}

func complexFormat(t *testing.T, isArray bool) *dataformat.DataFormat {
	t.Helper()
	b := dataformat.NewBuilder(nil)
	b.CreateComplexType("ComplexObject1")
	b.CreateComplexType("ComplexObject2")
	require.NoError(t, b.AddProperty("ComplexObject2", "superprop", "int32", true))
	require.NoError(t, b.AddProperty("ComplexObject1", "megaprop", "ComplexObject2", false))
	return build(t, b, "ComplexObject1", isArray)
}

func TestValidate_ComplexObject(t *testing.T) {
	v := NewValidator(nil)
	df := complexFormat(t, false)

	valid := map[string]any{"megaprop": map[string]any{"superprop": []int{21, 22, 23}}}
	assert.True(t, v.Validate(df, valid))

	assert.False(t, v.Validate(df, []any{"oh", "no", 23}))
	assert.False(t, v.Validate(df, map[string]any{"megaprop": map[string]any{"superprop": []any{"x"}}}))
	assert.False(t, v.Validate(df, map[string]any{"megaprop": 5}))
}

func TestValidate_ComplexObjectFromStruct(t *testing.T) {
	type inner struct {
		Superprop []int32 `json:"superprop"`
	}
	type outer struct {
		Megaprop inner `json:"megaprop"`
	}

	v := NewValidator(nil)
	assert.True(t, v.Validate(complexFormat(t, false), outer{Megaprop: inner{Superprop: []int32{1, 2}}}))
}

func TestValidate_ComplexArray(t *testing.T) {
	v := NewValidator(nil)
	df := complexFormat(t, true)

	item := map[string]any{"megaprop": map[string]any{"superprop": []int{1}}}
	assert.True(t, v.Validate(df, []any{item, item}))
	assert.False(t, v.Validate(df, []any{item, "not an object"}))
	assert.False(t, v.Validate(df, item), "object is not an array")
}

func TestValidate_RecursiveFormat(t *testing.T) {
	b := dataformat.NewBuilder(nil)
	b.CreateComplexType("Node")
	require.NoError(t, b.AddProperty("Node", "value", "string", false))
	require.NoError(t, b.AddProperty("Node", "children", "Node", true))
	df := build(t, b, "Node", false)

	v := NewValidator(nil)
	tree := map[string]any{
		"value": "root",
		"children": []any{
			map[string]any{"value": "leaf", "children": []any{}},
		},
	}
	assert.True(t, v.Validate(df, tree))

	tree["children"] = []any{map[string]any{"value": 7}}
	assert.False(t, v.Validate(df, tree))
}

func TestValidate_UnencodableValue(t *testing.T) {
	b := dataformat.NewBuilder(nil)
	v := NewValidator(nil)
	assert.False(t, v.Validate(build(t, b, "string", false), make(chan int)))
}
