package keyword

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrDuplicateKeyword = errors.New("keyword already registered")
	ErrUnknownKeyword   = errors.New("keyword not registered")
	ErrRegistryFrozen   = errors.New("keyword registry is frozen")
)

// DuplicateKeywordError is returned when a name is registered twice.
type DuplicateKeywordError struct {
	Name string
}

func (e *DuplicateKeywordError) Error() string {
	return fmt.Sprintf("keyword %q already registered", e.Name)
}

func (e *DuplicateKeywordError) Unwrap() error { return ErrDuplicateKeyword }

// UnknownKeywordError is returned when a lookup misses.
type UnknownKeywordError struct {
	Name string
}

func (e *UnknownKeywordError) Error() string {
	return fmt.Sprintf("keyword %q not registered", e.Name)
}

func (e *UnknownKeywordError) Unwrap() error { return ErrUnknownKeyword }

// Registry maps keyword names to keywords.
//
// A loader populates the registry and then calls Freeze. After that the
// registry is read-only and safe to share between concurrently running flows.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Keyword
	frozen bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Keyword),
	}
}

// Register validates kw and adds it under kw.Name.
func (r *Registry) Register(kw *Keyword) error {
	if kw == nil {
		return fmt.Errorf("keyword: %w", ErrNilHandler)
	}
	if err := kw.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %q: %w", kw.Name, ErrRegistryFrozen)
	}
	if _, exists := r.byName[kw.Name]; exists {
		return &DuplicateKeywordError{Name: kw.Name}
	}

	r.byName[kw.Name] = kw
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(kw *Keyword) {
	if err := r.Register(kw); err != nil {
		panic(err)
	}
}

// Lookup returns the keyword registered under name.
func (r *Registry) Lookup(name string) (*Keyword, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kw, ok := r.byName[name]
	if !ok {
		return nil, &UnknownKeywordError{Name: name}
	}
	return kw, nil
}

// Describe returns the serializable schema of the named keyword.
func (r *Registry) Describe(name string) (Schema, error) {
	kw, err := r.Lookup(name)
	if err != nil {
		return Schema{}, err
	}
	return SchemaOf(kw), nil
}

// DescribeAll returns the schemas of every registered keyword, sorted by
// name.
func (r *Registry) DescribeAll() []Schema {
	names := r.Names()
	out := make([]Schema, 0, len(names))
	for _, name := range names {
		if s, err := r.Describe(name); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the registered keyword names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of registered keywords.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Freeze ends the loading phase. Further Register calls fail.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
