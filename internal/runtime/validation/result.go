package validation

import (
	"bytes"
	"sync"

	"github.com/drblury/interactor/internal/runtime/casing"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
)

// Result is a single validation finding: an optional message and the set of
// member paths it applies to. Member paths use canonical (Go field) casing.
type Result struct {
	ErrorMessage *string
	MemberNames  []string
}

// NewResult builds a finding. Member names are de-duplicated keeping the first
// occurrence.
func NewResult(message string, members ...string) Result {
	r := Result{ErrorMessage: &message}
	for _, m := range members {
		r.MemberNames = appendMember(r.MemberNames, m)
	}
	return r
}

// Message returns the finding message or "" when none was set.
func (r Result) Message() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

func (r Result) String() string {
	return r.Message()
}

func appendMember(members []string, m string) []string {
	for _, existing := range members {
		if existing == m {
			return members
		}
	}
	return append(members, m)
}

type wireResult struct {
	ErrorMessage *string  `json:"errorMessage"`
	MemberNames  []string `json:"memberNames"`
}

// MarshalJSON writes {"errorMessage":..,"memberNames":[..]} in that order with
// member paths converted by the process-wide wire casing policy.
func (r Result) MarshalJSON() ([]byte, error) {
	return r.marshal(casing.Wire())
}

// UnmarshalJSON restores canonical member casing from the wire form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := jsoncodec.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = w.canonical(casing.Wire())
	return nil
}

// MarshalResults writes findings as a JSON array using p for member paths
// instead of the process-wide policy.
func MarshalResults(p casing.Policy, results []Result) ([]byte, error) {
	if results == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range results {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := r.marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalResults reverses MarshalResults.
func UnmarshalResults(p casing.Policy, data []byte) ([]Result, error) {
	var ws []wireResult
	if err := jsoncodec.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, nil
	}
	out := make([]Result, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.canonical(p))
	}
	return out, nil
}

func (r Result) marshal(p casing.Policy) ([]byte, error) {
	members := make([]string, 0, len(r.MemberNames))
	for _, m := range r.MemberNames {
		members = append(members, casing.PathToWire(p, m))
	}

	msg, err := jsoncodec.Marshal(r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	names, err := jsoncodec.Marshal(members)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"errorMessage":`)
	buf.Write(msg)
	buf.WriteString(`,"memberNames":`)
	buf.Write(names)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (w wireResult) canonical(p casing.Policy) Result {
	r := Result{ErrorMessage: w.ErrorMessage}
	for _, m := range w.MemberNames {
		r.MemberNames = appendMember(r.MemberNames, casing.PathFromWire(p, m))
	}
	return r
}

// Findings is the insertion-ordered set of findings collected for one
// invocation. It is safe for concurrent use.
type Findings struct {
	mu    sync.Mutex
	items []Result
}

// Add appends findings in order.
func (f *Findings) Add(results ...Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, results...)
}

// All returns a snapshot of the collected findings.
func (f *Findings) All() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Result, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Findings) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Valid reports whether no finding was collected.
func (f *Findings) Valid() bool {
	return f.Len() == 0
}
