package selfdescription

import (
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"github.com/research-virtualfortknox/msb-client-websocket-go/config"
	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// Registry holds everything the client declares about itself: events,
// functions and configuration parameters. It renders the self-description
// sent to the broker on registration.
type Registry struct {
	mu sync.RWMutex

	identity config.Identity
	builder  *dataformat.Builder
	logger   *slog.Logger

	events     []*Event
	eventIndex map[string]*Event

	functions     []*Function
	functionIndex map[string]*Function

	params map[string]*ConfigParameter
}

// NewRegistry creates an empty registry for identity. Data types given by
// name are resolved through builder.
func NewRegistry(identity config.Identity, builder *dataformat.Builder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if builder == nil {
		builder = dataformat.NewBuilder(logger)
	}
	return &Registry{
		identity:      identity,
		builder:       builder,
		logger:        logger,
		eventIndex:    make(map[string]*Event),
		functionIndex: make(map[string]*Function),
		params:        make(map[string]*ConfigParameter),
	}
}

// Identity returns the identity the registry describes.
func (r *Registry) Identity() config.Identity {
	return r.identity
}

// AddEvent declares an event from individual arguments.
func (r *Registry) AddEvent(eventID, name, description, dataType string, priority any, isArray bool) error {
	return r.AddEventSpec(EventSpec{
		EventID:     eventID,
		Name:        name,
		Description: description,
		DataType:    dataType,
		IsArray:     isArray,
		Priority:    priority,
	})
}

// AddEventSpec declares an event. The event gets the next @id on success;
// a duplicate id or an invalid data format leaves the registry unchanged.
func (r *Registry) AddEventSpec(spec EventSpec) error {
	df, err := r.resolveFormat(spec.DataFormat, spec.DataType, spec.IsArray)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "AddEvent", fmt.Sprintf("build data format of event %s", spec.EventID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.eventIndex[spec.EventID]; exists {
		return errors.Invalidf(errors.ErrDuplicateID, "Registry", "AddEvent",
			"event %s already declared", spec.EventID)
	}

	ev := &Event{
		ID:          len(r.events) + 1,
		EventID:     spec.EventID,
		Name:        spec.Name,
		Description: spec.Description,
		DataFormat:  df,
		Implementation: Implementation{
			UUID:     r.identity.UUID,
			EventID:  spec.EventID,
			Priority: NormalizePriority(spec.Priority),
		},
	}
	r.events = append(r.events, ev)
	r.eventIndex[ev.EventID] = ev

	r.logger.Debug("Event added", "event_id", ev.EventID, "id", ev.ID, "priority", ev.Implementation.Priority)
	return nil
}

// AddFunction declares a function from individual arguments.
func (r *Registry) AddFunction(functionID, name, description, dataType string, handler Handler, isArray bool, responseEvents []string) error {
	return r.AddFunctionSpec(FunctionSpec{
		FunctionID:     functionID,
		Name:           name,
		Description:    description,
		DataType:       dataType,
		IsArray:        isArray,
		Handler:        handler,
		ResponseEvents: responseEvents,
	})
}

// AddFunctionSpec declares a function. Response events must already be
// declared; on any failure the registry is left unchanged.
func (r *Registry) AddFunctionSpec(spec FunctionSpec) error {
	df, err := r.resolveFormat(spec.DataFormat, spec.DataType, spec.IsArray)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "AddFunction", fmt.Sprintf("build data format of function %s", spec.FunctionID))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	responseIDs := make([]int, 0, len(spec.ResponseEvents))
	for _, eventID := range spec.ResponseEvents {
		ev, ok := r.eventIndex[eventID]
		if !ok {
			return errors.Invalidf(errors.ErrUnknownResponseEvent, "Registry", "AddFunction",
				"response event %s of function %s not declared", eventID, spec.FunctionID)
		}
		responseIDs = append(responseIDs, ev.ID)
	}

	if _, exists := r.functionIndex[spec.FunctionID]; exists {
		return errors.Invalidf(errors.ErrDuplicateID, "Registry", "AddFunction",
			"function %s already declared", spec.FunctionID)
	}

	fn := &Function{
		FunctionID:     spec.FunctionID,
		Name:           spec.Name,
		Description:    spec.Description,
		DataFormat:     df,
		ResponseEvents: responseIDs,
		Handler:        spec.Handler,
	}
	r.functions = append(r.functions, fn)
	r.functionIndex[fn.FunctionID] = fn

	r.logger.Debug("Function added", "function_id", fn.FunctionID, "response_events", responseIDs)
	return nil
}

// resolveFormat returns the prebuilt format when given, otherwise builds one,
// and checks it against the data format meta-schema.
func (r *Registry) resolveFormat(prebuilt *dataformat.DataFormat, dataType string, isArray bool) (*dataformat.DataFormat, error) {
	df := prebuilt.Clone()
	if df == nil {
		var err error
		if df, err = r.builder.Build(dataType, isArray); err != nil {
			return nil, err
		}
	}
	if err := dataformat.CheckDataFormat(df); err != nil {
		return nil, err
	}
	return df, nil
}

// Event returns a copy of the event declared as eventID.
func (r *Registry) Event(eventID string) (*Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.eventIndex[eventID]
	if !ok {
		return nil, false
	}
	return ev.clone(), true
}

// Function returns a copy of the function declared as functionID.
func (r *Registry) Function(functionID string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.functionIndex[functionID]
	if !ok {
		return nil, false
	}
	return fn.clone(), true
}

// Handler returns the handler of functionID, nil when the function is
// unknown or has none.
func (r *Registry) Handler(functionID string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.functionIndex[functionID]; ok {
		return fn.Handler
	}
	return nil
}

// Events returns copies of all events in declaration order.
func (r *Registry) Events() []*Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Event, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.clone()
	}
	return out
}

// Functions returns copies of all functions in declaration order.
func (r *Registry) Functions() []*Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Function, len(r.functions))
	for i, fn := range r.functions {
		out[i] = fn.clone()
	}
	return out
}

// UpdateImplementation runs update on the live implementation of eventID
// under the registry lock and returns a snapshot of the result.
func (r *Registry) UpdateImplementation(eventID string, update func(*Implementation)) (Implementation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.eventIndex[eventID]
	if !ok {
		return Implementation{}, false
	}
	update(&ev.Implementation)
	return ev.Implementation, true
}

// Render builds the self-description. It does not modify the registry.
func (r *Registry) Render() SelfDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sd := SelfDescription{
		UUID:          r.identity.UUID,
		Name:          r.identity.Name,
		Description:   r.identity.Description,
		Token:         r.identity.Token,
		Class:         r.identity.Type,
		Events:        make([]*Event, len(r.events)),
		Functions:     make([]*Function, len(r.functions)),
		Configuration: Configuration{Parameters: make(map[string]ConfigParameter, len(r.params))},
	}
	for i, ev := range r.events {
		sd.Events[i] = ev.clone()
	}
	for i, fn := range r.functions {
		sd.Functions[i] = fn.clone()
	}
	for key, p := range r.params {
		sd.Configuration.Parameters[key] = *p
	}
	return sd
}

// ConfigParameterKeys returns the sorted parameter keys.
func (r *Registry) ConfigParameterKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.params))
	for k := range maps.Keys(r.params) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
