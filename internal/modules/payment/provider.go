package payment

import (
	"fmt"
	"strings"

	"wali/internal/apperr"
)

var ErrUnknownProvider = fmt.Errorf("%w: unknown payment provider", apperr.ErrNotFound)

// Adapter hides one provider's signature scheme and payload vocabulary.
type Adapter interface {
	Provider() string
	SignatureHeader() string
	VerifySignature(payload []byte, signature string) bool
	NormalizeEvent(payload []byte) (Notification, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[strings.ToLower(a.Provider())] = a
	}
	return r
}

func (r *Registry) Lookup(provider string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, provider)
	}
	return a, nil
}
