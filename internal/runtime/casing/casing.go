// Package casing converts member and property names between their canonical
// Go form (PascalCase) and the form used on the wire.
package casing

import (
	"strings"
	"sync/atomic"

	"github.com/iancoleman/strcase"
)

// Policy maps a canonical name to its wire form and back.
type Policy interface {
	ToWire(name string) string
	FromWire(name string) string
}

type camelCase struct{}

// CamelCase writes lowerCamel names on the wire and restores PascalCase on the
// way back: "MemberName1" <-> "memberName1". Runs of capitals are folded, so
// acronyms do not survive the round trip ("UserID" -> "userId" -> "UserId").
var CamelCase Policy = camelCase{}

func (camelCase) ToWire(name string) string {
	if name == "" {
		return name
	}
	return strcase.ToLowerCamel(name)
}

func (camelCase) FromWire(name string) string {
	if name == "" {
		return name
	}
	return strcase.ToCamel(name)
}

type canonical struct{}

// Canonical leaves names untouched in both directions.
var Canonical Policy = canonical{}

func (canonical) ToWire(name string) string   { return name }
func (canonical) FromWire(name string) string { return name }

type policyHolder struct{ p Policy }

var active atomic.Pointer[policyHolder]

func init() {
	active.Store(&policyHolder{p: CamelCase})
}

// Wire returns the platform-wide wire policy.
func Wire() Policy {
	return active.Load().p
}

// SetWire replaces the platform-wide wire policy. It is meant to be called
// once during startup, before any payload is encoded.
func SetWire(p Policy) {
	if p == nil {
		p = CamelCase
	}
	active.Store(&policyHolder{p: p})
}

// ByName resolves a policy from its configuration name ("camel" or
// "canonical"). The second result is false for unknown names.
func ByName(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "camel", "camelcase":
		return CamelCase, true
	case "canonical", "none", "pascal":
		return Canonical, true
	default:
		return nil, false
	}
}

// PathToWire applies p to the identifier part of every "."-separated segment
// of a member path. Index and key suffixes pass through unchanged:
// "Items[0].Name" -> "items[0].name".
func PathToWire(p Policy, path string) string {
	return mapSegments(path, p.ToWire)
}

// PathFromWire reverses PathToWire.
func PathFromWire(p Policy, path string) string {
	return mapSegments(path, p.FromWire)
}

func mapSegments(path string, fn func(string) string) string {
	if !strings.ContainsAny(path, ".[") {
		return fn(path)
	}
	var b strings.Builder
	b.Grow(len(path))
	start, depth := 0, 0
	flush := func(end int) {
		if end > start {
			b.WriteString(fn(path[start:end]))
		}
	}
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '[':
			if depth == 0 {
				flush(i)
			}
			depth++
			b.WriteByte(c)
		case depth > 0:
			b.WriteByte(c)
			if c == ']' {
				depth--
				start = i + 1
			}
		case c == '.':
			flush(i)
			b.WriteByte(c)
			start = i + 1
		}
	}
	if depth == 0 {
		flush(len(path))
	}
	return b.String()
}
