package validation

import (
	"cmp"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

type rule[T any] func(model T) (Result, bool)

// Schema is an explicit set of rules for models of type T. Build it once at
// startup and register it with a Runner.
//
//	schema := validation.NewSchema[CreateUser]().
//		Required("Email", func(r CreateUser) any { return r.Email }).
//		Length("Name", func(r CreateUser) string { return r.Name }, 1, 64)
type Schema[T any] struct {
	rules []rule[T]
}

func NewSchema[T any]() *Schema[T] {
	return &Schema[T]{}
}

// Required fails when the value is nil, a nil reference or a blank string.
func (s *Schema[T]) Required(member string, get func(T) any) *Schema[T] {
	return s.add(func(model T) (Result, bool) {
		if isMissing(get(model)) {
			return NewResult(fmt.Sprintf("The %s field is required.", display(member)), member), false
		}
		return Result{}, true
	})
}

// Length bounds the rune length of a string. Empty strings are left to Required.
// A max below zero means no upper bound.
func (s *Schema[T]) Length(member string, get func(T) string, minLen, maxLen int) *Schema[T] {
	return s.add(func(model T) (Result, bool) {
		v := get(model)
		if v == "" {
			return Result{}, true
		}
		n := utf8.RuneCountInString(v)
		if n >= minLen && (maxLen < 0 || n <= maxLen) {
			return Result{}, true
		}
		var msg string
		switch {
		case maxLen < 0:
			msg = fmt.Sprintf("The field %s must be a string with a minimum length of %d.", display(member), minLen)
		case minLen > 0:
			msg = fmt.Sprintf("The field %s must be a string with a minimum length of %d and a maximum length of %d.", display(member), minLen, maxLen)
		default:
			msg = fmt.Sprintf("The field %s must be a string with a maximum length of %d.", display(member), maxLen)
		}
		return NewResult(msg, member), false
	})
}

// Pattern requires non-empty strings to match expr in full.
func (s *Schema[T]) Pattern(member string, get func(T) string, expr string) *Schema[T] {
	re := regexp.MustCompile(`^(?:` + expr + `)$`)
	return s.add(func(model T) (Result, bool) {
		v := get(model)
		if v == "" || re.MatchString(v) {
			return Result{}, true
		}
		return NewResult(fmt.Sprintf("The field %s must match the regular expression '%s'.", display(member), expr), member), false
	})
}

// Must records message against members when ok returns false.
func (s *Schema[T]) Must(ok func(T) bool, message string, members ...string) *Schema[T] {
	return s.add(func(model T) (Result, bool) {
		if ok(model) {
			return Result{}, true
		}
		return NewResult(message, members...), false
	})
}

// Range bounds an ordered value to [minV, maxV]. It is a function rather than a
// method because methods cannot declare type parameters.
func Range[T any, V cmp.Ordered](s *Schema[T], member string, get func(T) V, minV, maxV V) *Schema[T] {
	return s.add(func(model T) (Result, bool) {
		v := get(model)
		if cmp.Compare(v, minV) >= 0 && cmp.Compare(v, maxV) <= 0 {
			return Result{}, true
		}
		return NewResult(fmt.Sprintf("The field %s must be between %v and %v.", display(member), minV, maxV), member), false
	})
}

func (s *Schema[T]) add(r rule[T]) *Schema[T] {
	s.rules = append(s.rules, r)
	return s
}

// Validate applies every rule to model, appending one finding per violated rule.
func (s *Schema[T]) Validate(model T, f *Findings) bool {
	valid := true
	for _, r := range s.rules {
		if res, ok := r(model); !ok {
			f.Add(res)
			valid = false
		}
	}
	return valid
}

func (s *Schema[T]) modelType() reflect.Type {
	return reflect.TypeFor[T]()
}

func (s *Schema[T]) check(model any, f *Findings) bool {
	m, ok := model.(T)
	if !ok {
		rv := reflect.ValueOf(model)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != s.modelType() {
			return true
		}
		m = rv.Elem().Interface().(T)
	}
	return s.Validate(m, f)
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// display is the last segment of a member path.
func display(member string) string {
	if i := strings.LastIndexByte(member, '.'); i >= 0 {
		return member[i+1:]
	}
	return member
}
