package validators

import "sync"

// Registry dispatches URLs to source validators. The first validator
// whose CanHandle accepts the URL wins, so registration order matters.
type Registry struct {
	mu         sync.RWMutex
	validators []Validator
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a validator. Later registrations only see URLs no
// earlier validator claimed.
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	r.validators = append(r.validators, v)
	r.mu.Unlock()
}

// Validate routes the URL to the first matching validator. URLs no
// validator claims come back invalid with SourceUnknown.
func (r *Registry) Validate(url string) ValidationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.validators {
		if v.CanHandle(url) {
			return v.Validate(url)
		}
	}
	return ValidationResult{
		SourceType: SourceUnknown,
		URL:        url,
		Error:      "unsupported URL format",
	}
}

// GetSupportedSources lists the source types the registry can ingest
func (r *Registry) GetSupportedSources() []SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]SourceType, 0, len(r.validators))
	for _, v := range r.validators {
		sources = append(sources, v.SourceType())
	}
	return sources
}

// DefaultRegistry registers the built-in validators. YouTube is the
// only ingestible source today; the registry stays so new sources slot
// in without touching callers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewYouTubeValidator())
	return r
}
