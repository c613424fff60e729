package jira

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind selects how a recommended value is shaped for Jira.
type Kind string

const (
	// KindName sends {"name": v}.
	KindName Kind = "name"
	// KindNames splits v on commas and sends [{"name": a}, {"name": b}].
	KindNames Kind = "names"
	// KindValue sends {"value": v}, as used by select-list custom fields.
	KindValue Kind = "value"
	// KindString sends v unchanged.
	KindString Kind = "string"
)

// FieldSpec maps one triage field name onto a Jira field.
type FieldSpec struct {
	ID   string `yaml:"id"`
	Kind Kind   `yaml:"kind"`
}

// FieldMap is keyed by the lower-case field name used in recommendations.
type FieldMap map[string]FieldSpec

// DefaultFieldMap covers the fields the triage prompt asks for.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		"team":       {ID: "customfield_12313240", Kind: KindName},
		"components": {ID: "components", Kind: KindNames},
	}
}

type fieldMapFile struct {
	Fields FieldMap `yaml:"fields"`
}

// LoadFieldMap reads a YAML file of the form
//
//	fields:
//	  team: {id: customfield_12313240, kind: name}
//
// and overlays it on DefaultFieldMap. An entry with an empty id removes
// the default mapping.
func LoadFieldMap(path string) (FieldMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field map: %w", err)
	}
	var f fieldMapFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse field map %s: %w", path, err)
	}

	m := DefaultFieldMap()
	for name, spec := range f.Fields {
		name = strings.ToLower(strings.TrimSpace(name))
		if spec.ID == "" {
			delete(m, name)
			continue
		}
		if spec.Kind == "" {
			spec.Kind = KindString
		}
		switch spec.Kind {
		case KindName, KindNames, KindValue, KindString:
		default:
			return nil, fmt.Errorf("field map %s: unknown kind %q for %q", path, spec.Kind, name)
		}
		m[name] = spec
	}
	return m, nil
}

// Translate returns the Jira field id and payload for a recommended value.
// ok is false for fields the map does not know.
func (m FieldMap) Translate(field, value string) (id string, payload any, ok bool) {
	spec, ok := m[strings.ToLower(field)]
	if !ok {
		return "", nil, false
	}
	switch spec.Kind {
	case KindName:
		return spec.ID, NamedRef{Name: value}, true
	case KindNames:
		parts := strings.Split(value, ",")
		refs := make([]NamedRef, 0, len(parts))
		for _, p := range parts {
			refs = append(refs, NamedRef{Name: strings.TrimSpace(p)})
		}
		return spec.ID, refs, true
	case KindValue:
		return spec.ID, map[string]string{"value": value}, true
	default:
		return spec.ID, value, true
	}
}
