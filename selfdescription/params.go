package selfdescription

import (
	"fmt"
	"strings"

	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// NewConfigParameter creates a parameter of the given simple format keyword,
// mapped through builder so widened keywords are logged. Boolean parameters
// take a bool or a case-insensitive "true"/"false".
func NewConfigParameter(builder *dataformat.Builder, value any, format string) (*ConfigParameter, error) {
	d := builder.MapPrimitive(format)
	if d == nil {
		return nil, errors.Invalidf(errors.ErrInvalidDataFormat, "ConfigParameter", "New",
			"configuration parameter needs a format")
	}

	p := &ConfigParameter{
		Type:   strings.ToUpper(d.Type),
		Format: strings.ToUpper(d.Format),
	}
	if err := p.assign(value); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ConfigParameter) isBoolean() bool {
	return p.Type == strings.ToUpper(dataformat.TypeBoolean)
}

func (p *ConfigParameter) assign(value any) error {
	if !p.isBoolean() {
		p.Value = value
		return nil
	}
	b, err := parseBool(value)
	if err != nil {
		return err
	}
	p.Value = b
	return nil
}

func parseBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, errors.Invalidf(errors.ErrInvalidParameterValue, "ConfigParameter", "parseBool",
		"boolean parameter cannot take %v", value)
}

// AddConfigParameter declares a configuration parameter.
func (r *Registry) AddConfigParameter(key string, value any, format string) error {
	p, err := NewConfigParameter(r.builder, value, format)
	if err != nil {
		return errors.WrapInvalid(err, "Registry", "AddConfigParameter", fmt.Sprintf("create parameter %s", key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.params[key]; exists {
		return errors.Invalidf(errors.ErrDuplicateID, "Registry", "AddConfigParameter",
			"configuration parameter %s already declared", key)
	}
	r.params[key] = p
	return nil
}

// ConfigParameter returns the current value of key.
func (r *Registry) ConfigParameter(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.params[key]
	if !ok {
		return nil, false
	}
	return p.Value, true
}

// SetConfigParameter replaces the value of key and returns the old value so
// the caller can roll back.
func (r *Registry) SetConfigParameter(key string, value any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.params[key]
	if !ok {
		return nil, errors.Invalidf(errors.ErrUnknownParameter, "Registry", "SetConfigParameter",
			"configuration parameter %s not declared", key)
	}
	old := p.Value
	if err := p.assign(value); err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "SetConfigParameter", fmt.Sprintf("assign parameter %s", key))
	}
	return old, nil
}

// ApplyConfigUpdate assigns every known key of params and returns the keys
// it applied. Unknown keys and values a boolean parameter cannot take are
// skipped.
func (r *Registry) ApplyConfigUpdate(params map[string]any) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := make([]string, 0, len(params))
	for key, value := range params {
		p, ok := r.params[key]
		if !ok {
			r.logger.Debug("Ignoring update of unknown configuration parameter", "key", key)
			continue
		}
		if err := p.assign(value); err != nil {
			r.logger.Warn("Ignoring invalid configuration parameter value", "key", key, "error", err)
			continue
		}
		applied = append(applied, key)
	}
	return applied
}
