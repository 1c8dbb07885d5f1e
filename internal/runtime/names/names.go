// Package names derives the fully-qualified type names used to identify
// request types and exception kinds across process boundaries.
package names

import "reflect"

// Of returns the fully-qualified name of t, e.g.
// "github.com/acme/users.CreateUser". Pointer types resolve to their element
// type so *CreateUser and CreateUser share one name.
func Of(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// OfValue returns the fully-qualified name of the dynamic type of v.
func OfValue(v any) string {
	if v == nil {
		return ""
	}
	return Of(reflect.TypeOf(v))
}

// OfType returns the fully-qualified name of the type parameter T.
func OfType[T any]() string {
	return Of(reflect.TypeFor[T]())
}

// Short returns the unqualified type name, used for log fields and metric labels.
func Short(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
