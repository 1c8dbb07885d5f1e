package ids

import (
	"github.com/google/uuid"
)

// InvocationID identifies exactly one dispatch call. Two dispatches never
// share an id unless a remote bridge is continuing the caller's invocation.
type InvocationID uuid.UUID

// NilInvocationID is the zero id; it never identifies a real invocation.
var NilInvocationID InvocationID

// NewInvocationID returns a random (version 4) invocation id.
func NewInvocationID() InvocationID {
	return InvocationID(uuid.New())
}

// ParseInvocationID parses the canonical textual form of an invocation id.
func ParseInvocationID(s string) (InvocationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilInvocationID, err
	}
	return InvocationID(u), nil
}

func (id InvocationID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero id.
func (id InvocationID) IsNil() bool {
	return id == NilInvocationID
}

func (id InvocationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *InvocationID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*id = InvocationID(u)
	return nil
}
