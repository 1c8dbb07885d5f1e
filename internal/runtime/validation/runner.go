package validation

import (
	"fmt"
	"reflect"
	"sync"
)

// Validator applies declarative rules to request and response models. It never
// fails on invalid input; findings are appended to f instead.
type Validator interface {
	ValidateRequest(model any, f *Findings) bool
	ValidateResponse(model any, f *Findings) bool
}

// SelfValidating models contribute their own findings after the registered rules.
type SelfValidating interface {
	ValidateInteraction() []Result
}

type checker interface {
	modelType() reflect.Type
	check(model any, f *Findings) bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTagEngine enables struct-tag validation.
func WithTagEngine(e *TagEngine) RunnerOption {
	return func(r *Runner) { r.tags = e }
}

// Runner composes registered schemas, struct tags and self-validation. Schemas
// are registered at startup; validation only reads.
type Runner struct {
	mu        sync.RWMutex
	requests  map[reflect.Type]checker
	responses map[reflect.Type]checker
	tags      *TagEngine
}

func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		requests:  make(map[reflect.Type]checker),
		responses: make(map[reflect.Type]checker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterRequest attaches a schema to request models of type T.
func RegisterRequest[T any](r *Runner, s *Schema[T]) {
	r.register(r.requests, s)
}

// RegisterResponse attaches a schema to response models of type T.
func RegisterResponse[T any](r *Runner, s *Schema[T]) {
	r.register(r.responses, s)
}

func (r *Runner) register(into map[reflect.Type]checker, c checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	into[c.modelType()] = c
}

func (r *Runner) ValidateRequest(model any, f *Findings) bool {
	return r.run(r.requests, model, f)
}

func (r *Runner) ValidateResponse(model any, f *Findings) bool {
	return r.run(r.responses, model, f)
}

func (r *Runner) run(schemas map[reflect.Type]checker, model any, f *Findings) (valid bool) {
	if model == nil {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			f.Add(NewResult(fmt.Sprintf("The model could not be validated: %v", rec)))
			valid = false
		}
	}()

	valid = true
	if c := r.lookup(schemas, reflect.TypeOf(model)); c != nil {
		valid = c.check(model, f) && valid
	}
	if r.tags != nil {
		valid = r.tags.Validate(model, f) && valid
	}
	if sv, ok := model.(SelfValidating); ok {
		if extra := sv.ValidateInteraction(); len(extra) > 0 {
			f.Add(extra...)
			valid = false
		}
	}
	return valid
}

func (r *Runner) lookup(schemas map[reflect.Type]checker, t reflect.Type) checker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := schemas[t]; ok {
		return c
	}
	if t.Kind() == reflect.Pointer {
		return schemas[t.Elem()]
	}
	return nil
}

// Nop accepts every model.
type Nop struct{}

func (Nop) ValidateRequest(any, *Findings) bool  { return true }
func (Nop) ValidateResponse(any, *Findings) bool { return true }
