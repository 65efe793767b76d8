package mapping

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrTemplateNotFound is returned when no store knows the requested template.
var ErrTemplateNotFound = errors.New("mapping template not found")

// Store is a read-only source of mapping templates.
type Store interface {
	// GetTemplate returns the named template or ErrTemplateNotFound.
	GetTemplate(ctx context.Context, name string) (*Template, error)

	// FindByFingerprint returns the template registered for a header
	// fingerprint, or nil when there is none.
	FindByFingerprint(ctx context.Context, fingerprint string) (*Template, error)
}

// MemoryStore holds templates in memory. The default template is always present.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewMemoryStore creates a store seeded with the default template and the given ones.
func NewMemoryStore(templates ...*Template) (*MemoryStore, error) {
	s := &MemoryStore{templates: map[string]*Template{DefaultTemplateName: DefaultTemplate()}}
	for _, t := range templates {
		if err := s.Put(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put validates and registers a template, replacing any with the same name.
func (s *MemoryStore) Put(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Name] = t
	return nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, name string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return t, nil
}

func (s *MemoryStore) FindByFingerprint(_ context.Context, fingerprint string) (*Template, error) {
	if fingerprint == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// several templates may share a fingerprint; the lowest name wins
	for _, name := range slices.Sorted(maps.Keys(s.templates)) {
		if t := s.templates[name]; t.Fingerprint == fingerprint {
			return t, nil
		}
	}
	return nil, nil
}

// Names lists registered template names.
func (s *MemoryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}

// ChainStore consults stores in order and returns the first hit.
type ChainStore []Store

func (c ChainStore) GetTemplate(ctx context.Context, name string) (*Template, error) {
	for _, s := range c {
		t, err := s.GetTemplate(ctx, name)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

func (c ChainStore) FindByFingerprint(ctx context.Context, fingerprint string) (*Template, error) {
	for _, s := range c {
		t, err := s.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}
