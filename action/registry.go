package action

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"tqa/reasoning"
)

// Registry maps type tags to constructors. Build one per application and pass
// it to whatever turns specs into actions.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	validate     *validator.Validate
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register adds or replaces the constructor for tag.
func (r *Registry) Register(tag string, c Constructor) {
	if tag == "" || c == nil {
		panic("action: Register requires a tag and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[tag] = c
}

func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[tag]
	return ok
}

// Types lists the registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.constructors))
	for t := range r.constructors {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Build decodes spec into a fresh action of the tagged type and validates it.
// Unknown tags, unknown fields, missing required fields and rejected values all
// fail with *Error.
func (r *Registry) Build(spec reasoning.ActionSpec) (Action, error) {
	tag := spec.Type()
	r.mu.RLock()
	construct, ok := r.constructors[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, &Error{Type: tag, Op: "build", Err: fmt.Errorf("%w: %q", ErrUnknownType, tag)}
	}

	act := construct()
	fields := make(map[string]any, len(spec))
	for k, v := range spec {
		if k != "type" {
			fields[k] = v
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           act,
		TagName:          "json",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, &Error{Type: tag, Op: "build", Err: err}
	}
	if err := decoder.Decode(fields); err != nil {
		return nil, &Error{Type: tag, Op: "build", Err: fmt.Errorf("%w: %v", ErrInvalidSpec, err)}
	}

	if err := r.validate.Struct(act); err != nil {
		return nil, &Error{Type: tag, Op: "validate", Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}
	if err := act.Validate(); err != nil {
		return nil, &Error{Type: tag, Op: "validate", Err: err}
	}
	return act, nil
}
