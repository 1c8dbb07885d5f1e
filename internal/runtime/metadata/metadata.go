// Package metadata holds the headers exchanged by the remote dispatch bridge.
package metadata

import "time"

// Header keys set on remote request and reply messages.
const (
	KeyCorrelationID = "correlation_id"
	KeyInvocationID  = "invocation_id"
	KeyRequestType   = "request_type"
	KeyReplyTopic    = "reply_topic"
	KeyDeadline      = "deadline"
	KeyStatus        = "status"
)

// Reply statuses carried under KeyStatus.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metadata represents the headers carried alongside a remote request or reply.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

func (m Metadata) CorrelationID() string { return m[KeyCorrelationID] }
func (m Metadata) InvocationID() string  { return m[KeyInvocationID] }
func (m Metadata) RequestType() string   { return m[KeyRequestType] }
func (m Metadata) ReplyTopic() string    { return m[KeyReplyTopic] }

// Failed reports whether a reply carries an encoded error instead of a response.
func (m Metadata) Failed() bool {
	return m[KeyStatus] == StatusError
}

// Deadline parses KeyDeadline. The second result is false when the header is
// absent or malformed.
func (m Metadata) Deadline() (time.Time, bool) {
	raw, ok := m[KeyDeadline]
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WithDeadline returns a clone carrying deadline in RFC 3339 form.
func (m Metadata) WithDeadline(deadline time.Time) Metadata {
	return m.With(KeyDeadline, deadline.UTC().Format(time.RFC3339Nano))
}
