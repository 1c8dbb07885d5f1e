package wire

import (
	"bytes"
	"encoding/json"
	sterrors "errors"
	"fmt"

	"github.com/drblury/interactor/internal/runtime/casing"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
	"github.com/drblury/interactor/internal/runtime/names"
)

const (
	typeField    = "type"
	messageField = "message"
	dataField    = "data"

	// UnknownExceptionMessage is the message of errors decoded from payloads
	// that are not JSON objects.
	UnknownExceptionMessage = "unknown exception type"
)

var errNilError = sterrors.New("wire: cannot encode a nil error")

// Payload is an encoded error. It embeds verbatim into enclosing JSON documents.
type Payload []byte

func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], data...)
	return nil
}

// Codec converts errors to and from wire payloads.
type Codec struct {
	Registry *Registry
	// Casing overrides the process-wide wire casing policy when set. It covers
	// property keys and the member names of encoded findings.
	Casing casing.Policy
	Logger loggingpkg.ServiceLogger
}

// NewCodec returns a codec over reg, or over DefaultRegistry when reg is nil.
func NewCodec(reg *Registry) *Codec {
	return &Codec{Registry: reg}
}

func (c *Codec) registry() *Registry {
	if c == nil || c.Registry == nil {
		return DefaultRegistry()
	}
	return c.Registry
}

func (c *Codec) policy() casing.Policy {
	if c == nil || c.Casing == nil {
		return casing.Wire()
	}
	return c.Casing
}

func (c *Codec) logger() loggingpkg.ServiceLogger {
	if c == nil {
		return loggingpkg.NewNopServiceLogger()
	}
	return loggingpkg.OrNop(c.Logger)
}

// Encode writes type, message and the registered persisted properties of err,
// in that order. Causes are never written.
func (c *Codec) Encode(err error) ([]byte, error) {
	if isNil(err) {
		return nil, errNilError
	}
	typeName := names.OfValue(err)

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, typeField, typeName, true); err != nil {
		return nil, err
	}
	if msg := messageOf(err); msg != "" {
		if err := writeField(&buf, messageField, msg, false); err != nil {
			return nil, err
		}
	}

	if kind, ok := c.registry().Lookup(typeName); ok {
		policy := c.policy()
		for _, prop := range kind.Properties {
			v, present := prop.get(err, policy)
			if !present {
				continue
			}
			if err := writeField(&buf, policy.ToWire(prop.Name), v, false); err != nil {
				return nil, fmt.Errorf("wire: encode %s.%s: %w", typeName, prop.Name, err)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeValue is Encode for embedding. When err cannot be encoded the payload
// describes an unexpected error instead.
func (c *Codec) EncodeValue(err error) Payload {
	data, encErr := c.Encode(err)
	if encErr == nil {
		return data
	}
	c.logger().Error("Failed to encode error payload", encErr, loggingpkg.LogFields{"type": names.OfValue(err)})
	fallback, _ := c.Encode(errspkg.WrapUnexpected(nil))
	return fallback
}

func writeField(buf *bytes.Buffer, name string, v any, first bool) error {
	key, err := jsoncodec.Marshal(name)
	if err != nil {
		return err
	}
	val, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	if !first {
		buf.WriteByte(',')
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

func messageOf(err error) string {
	if ie, ok := err.(interface{ Message() string }); ok {
		return ie.Message()
	}
	return err.Error()
}

// Decode rebuilds an error from data. It never panics and never returns nil.
func (c *Codec) Decode(data []byte) error {
	var root map[string]json.RawMessage
	if err := jsoncodec.Unmarshal(data, &root); err != nil || root == nil {
		return errspkg.NewUnexpectedError(UnknownExceptionMessage, nil)
	}

	var nested map[string]json.RawMessage
	if raw, ok := root[dataField]; ok {
		_ = jsoncodec.Unmarshal(raw, &nested)
	}

	typeName := stringField(root, typeField)
	message := stringField(root, messageField)
	if message == "" {
		message = stringField(nested, messageField)
	}

	kind, ok := c.registry().Lookup(typeName)
	if !ok {
		c.logger().Debug("Unknown error kind on the wire", loggingpkg.LogFields{"type": typeName})
		if message == "" {
			message = UnknownExceptionMessage
		}
		return errspkg.NewUnexpectedError(message, nil)
	}

	out := construct(kind, message)
	if _, fallback := out.(*errspkg.UnexpectedError); fallback && typeName != names.OfType[*errspkg.UnexpectedError]() {
		c.logger().Debug("Error kind could not be constructed", loggingpkg.LogFields{"type": typeName})
		return out
	}

	policy := c.policy()
	for _, prop := range kind.Properties {
		key := policy.ToWire(prop.Name)
		raw, ok := root[key]
		if !ok {
			raw, ok = nested[key]
		}
		if !ok || isJSONNull(raw) {
			continue
		}
		if err := setProperty(prop, out, raw, policy); err != nil {
			c.logger().Debug("Skipping undecodable error property", loggingpkg.LogFields{
				"type":     typeName,
				"property": prop.Name,
				"error":    err.Error(),
			})
		}
	}
	return out
}

func construct(kind Kind, message string) (out error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = errspkg.NewUnexpectedError(message, nil)
		}
	}()
	out = kind.New(message)
	if isNil(out) {
		return errspkg.NewUnexpectedError(message, nil)
	}
	return out
}

func setProperty(prop Property, target error, raw json.RawMessage, p casing.Policy) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("property %s: %v", prop.Name, rec)
		}
	}()
	return prop.set(target, raw, p)
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := jsoncodec.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
