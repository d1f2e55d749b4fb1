package openvocab

import (
	"slices"
	"sort"
)

// Layout modes.
const (
	LayoutModeDefault = "default"
	// LayoutModeCustom marks a layout altered at runtime, so that callers
	// caching it do not re-initialise it from the stored defaults.
	LayoutModeCustom = "custom"
)

// FormLayout is the editing layout of a host bundle.
type FormLayout struct {
	HostType   string                      `json:"host_type"`
	Bundle     string                      `json:"bundle"`
	Mode       string                      `json:"mode"`
	Components map[string]*LayoutComponent `json:"components"`
	Groups     map[string]*LayoutGroup     `json:"groups,omitempty"`
}

// LayoutComponent is the placement of one field widget.
type LayoutComponent struct {
	Type     string         `json:"type"`
	Weight   float64        `json:"weight"`
	Region   string         `json:"region"`
	Parent   string         `json:"parent,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// LayoutGroup is a fieldset-like container of components.
type LayoutGroup struct {
	Label    string   `json:"label"`
	Parent   string   `json:"parent,omitempty"`
	Weight   float64  `json:"weight"`
	Children []string `json:"children"`
}

// NewFormLayout creates an empty layout in default mode.
func NewFormLayout(hostType, bundle string) *FormLayout {
	return &FormLayout{
		HostType:   hostType,
		Bundle:     bundle,
		Mode:       LayoutModeDefault,
		Components: make(map[string]*LayoutComponent),
		Groups:     make(map[string]*LayoutGroup),
	}
}

// Component returns the placement of field, if any.
func (l *FormLayout) Component(field string) (*LayoutComponent, bool) {
	c, ok := l.Components[field]
	return c, ok
}

// SetComponent places field.
func (l *FormLayout) SetComponent(field string, c *LayoutComponent) {
	if l.Components == nil {
		l.Components = make(map[string]*LayoutComponent)
	}
	l.Components[field] = c
}

// RemoveComponent drops the placement of field.
func (l *FormLayout) RemoveComponent(field string) {
	delete(l.Components, field)
}

// GroupOf returns the group whose children include field.
func (l *FormLayout) GroupOf(field string) (string, *LayoutGroup, bool) {
	names := make([]string, 0, len(l.Groups))
	for name := range l.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := l.Groups[name]
		if slices.Contains(g.Children, field) {
			return name, g, true
		}
	}
	return "", nil, false
}

// Ordered returns component names sorted by region, weight and name.
func (l *FormLayout) Ordered() []string {
	names := make([]string, 0, len(l.Components))
	for name := range l.Components {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := l.Components[names[i]], l.Components[names[j]]
		if ci.Region != cj.Region {
			return ci.Region < cj.Region
		}
		if ci.Weight != cj.Weight {
			return ci.Weight < cj.Weight
		}
		return names[i] < names[j]
	})
	return names
}
