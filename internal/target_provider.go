package internal

import (
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/openvocab"
)

// DefaultHandler is the handler identifier of providers registered through RegisterDefault.
const DefaultHandler = "default"

// TargetProviderRegistry maps vocabulary handler identifiers to target providers.
type TargetProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]openvocab.TargetProvider
}

// NewTargetProviderRegistry creates an empty registry.
func NewTargetProviderRegistry() *TargetProviderRegistry {
	return &TargetProviderRegistry{providers: make(map[string]openvocab.TargetProvider)}
}

// Register binds handlerID to provider, replacing any previous binding.
func (r *TargetProviderRegistry) Register(handlerID string, provider openvocab.TargetProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[handlerID] = provider
}

// RegisterDefault binds "default:<targetType>" to a DefaultTargetProvider.
func (r *TargetProviderRegistry) RegisterDefault(targetType, label string) string {
	id := DefaultHandler + ":" + targetType
	r.Register(id, NewDefaultTargetProvider(label, targetType))
	return id
}

// Get returns the provider bound to handlerID. Unregistered "default:<type>"
// identifiers resolve to a DefaultTargetProvider for that type.
func (r *TargetProviderRegistry) Get(handlerID string) (openvocab.TargetProvider, error) {
	r.mu.RLock()
	p, ok := r.providers[handlerID]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	targetType, isDefault := strings.CutPrefix(handlerID, DefaultHandler+":")
	if !isDefault || targetType == "" {
		return nil, openvocab.NewHandlerNotFoundError(handlerID)
	}
	return NewDefaultTargetProvider("", targetType), nil
}

// IDs lists the registered handler identifiers in order.
func (r *TargetProviderRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Options returns handler labels keyed by handler identifier, for select lists.
func (r *TargetProviderRegistry) Options() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.providers))
	for id, p := range r.providers {
		out[id] = p.Label()
	}
	return out
}

// DefaultTargetProvider references any record of one target type.
type DefaultTargetProvider struct {
	label      string
	targetType string
}

// NewDefaultTargetProvider creates a provider bound to targetType.
func NewDefaultTargetProvider(label, targetType string) *DefaultTargetProvider {
	if label == "" {
		label = targetType
	}
	return &DefaultTargetProvider{label: label, targetType: targetType}
}

func (p *DefaultTargetProvider) Label() string { return p.label }

func (p *DefaultTargetProvider) ResolveType() string { return p.targetType }

// BuildSelector passes settings through and pins the target type.
func (p *DefaultTargetProvider) BuildSelector(settings map[string]any) openvocab.Selector {
	out := make(map[string]any, len(settings)+1)
	for k, v := range settings {
		out[k] = v
	}
	out["target_type"] = p.targetType
	return openvocab.Selector{TargetType: p.targetType, Settings: out}
}
