package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/magiconair/properties"
)

// PropertiesParser is a koanf parser for Java-style .properties files such
// as the application.properties every MSB client ships with.
type PropertiesParser struct{}

// Properties returns a .properties parser.
func Properties() *PropertiesParser {
	return &PropertiesParser{}
}

// Unmarshal parses properties into a nested map, splitting keys on ".".
func (p *PropertiesParser) Unmarshal(b []byte) (map[string]any, error) {
	props, err := properties.Load(b, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("parse properties: %w", err)
	}

	flat := make(map[string]any, props.Len())
	for _, key := range props.Keys() {
		value, _ := props.Get(key)
		flat[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return maps.Unflatten(flat, "."), nil
}

// Marshal renders a nested map back into sorted key=value lines.
func (p *PropertiesParser) Marshal(o map[string]any) ([]byte, error) {
	flat, _ := maps.Flatten(o, nil, ".")
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := properties.NewProperties()
	for _, k := range keys {
		if _, _, err := props.Set(k, fmt.Sprint(flat[k])); err != nil {
			return nil, fmt.Errorf("set property %s: %w", k, err)
		}
	}

	var sb strings.Builder
	if _, err := props.Write(&sb, properties.UTF8); err != nil {
		return nil, fmt.Errorf("write properties: %w", err)
	}
	return []byte(sb.String()), nil
}
