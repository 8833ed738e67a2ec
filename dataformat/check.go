package dataformat

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

//go:embed dataformat_schema.json
var metaSchemaJSON []byte

var loadMetaSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(metaSchemaJSON))
})

// CheckDataFormat validates a DataFormat against the data format
// meta-schema so malformed declarations are rejected when declared rather
// than on first publish. A nil format (no payload) is always valid.
func CheckDataFormat(df *DataFormat) error {
	if df == nil {
		return nil
	}

	schema, err := loadMetaSchema()
	if err != nil {
		return errors.WrapFatal(err, "dataformat", "CheckDataFormat", "load meta-schema")
	}

	rendered, err := json.Marshal(df)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidDataFormat, err),
			"dataformat", "CheckDataFormat", "render data format")
	}
	document := []byte(`{"definitions":` + string(rendered) + `}`)

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidDataFormat, err),
			"dataformat", "CheckDataFormat", "validate data format")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidDataFormat, strings.Join(msgs, "; ")),
			"dataformat", "CheckDataFormat", "validate data format")
	}
	return nil
}
