package selfdescription

import (
	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
)

// Event priorities as sent to the broker.
const (
	PriorityLow    = 0
	PriorityMedium = 1
	PriorityHigh   = 2
)

// Implementation is the mutable part of an event that travels in every
// published "E" frame.
type Implementation struct {
	UUID          string `json:"uuid"`
	EventID       string `json:"eventId"`
	Priority      int    `json:"priority"`
	DataObject    any    `json:"dataObject,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	PostDate      string `json:"postDate,omitempty"`
}

// Event is an event the client emits. ID is the 1-based declaration index the
// broker uses to reference response events.
type Event struct {
	ID          int                    `json:"@id"`
	EventID     string                 `json:"eventId"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	DataFormat  *dataformat.DataFormat `json:"dataFormat,omitempty"`

	Implementation Implementation `json:"-"`
}

func (e *Event) clone() *Event {
	c := *e
	c.DataFormat = e.DataFormat.Clone()
	return &c
}

// Handler is invoked for every broker function call. params holds the
// call's function parameters plus "correlationId" when the call carried one.
type Handler func(params map[string]any)

// Function is a function the broker can invoke on this client.
// ResponseEvents holds the @id values of the events it answers with.
type Function struct {
	FunctionID     string                 `json:"functionId"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	DataFormat     *dataformat.DataFormat `json:"dataFormat,omitempty"`
	ResponseEvents []int                  `json:"responseEvents"`

	Handler Handler `json:"-"`
}

func (f *Function) clone() *Function {
	c := *f
	c.DataFormat = f.DataFormat.Clone()
	c.ResponseEvents = append([]int{}, f.ResponseEvents...)
	return &c
}

// EventSpec declares an event in one value. DataFormat, when set, is used
// as is; otherwise the format is built from DataType and IsArray.
type EventSpec struct {
	EventID     string
	Name        string
	Description string
	DataType    string
	IsArray     bool
	DataFormat  *dataformat.DataFormat
	// Priority accepts LOW, MEDIUM, HIGH or 0, 1, 2
	Priority any
}

// FunctionSpec declares a function in one value. ResponseEvents lists event
// ids that must already be declared.
type FunctionSpec struct {
	FunctionID     string
	Name           string
	Description    string
	DataType       string
	IsArray        bool
	DataFormat     *dataformat.DataFormat
	Handler        Handler
	ResponseEvents []string
}

// ConfigParameter is a broker-editable configuration value. Type and Format
// are the upper-cased data type of the declared format keyword.
type ConfigParameter struct {
	Value  any    `json:"value"`
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

// Configuration is the rendered configuration block.
type Configuration struct {
	Parameters map[string]ConfigParameter `json:"parameters"`
}

// SelfDescription is the registration document sent in "R" frames.
type SelfDescription struct {
	UUID          string        `json:"uuid"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Token         string        `json:"token"`
	Class         string        `json:"@class"`
	Events        []*Event      `json:"events"`
	Functions     []*Function   `json:"functions"`
	Configuration Configuration `json:"configuration"`
}
