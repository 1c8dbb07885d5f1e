package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	configpkg "github.com/drblury/interactor/internal/runtime/config"
	"github.com/drblury/interactor/internal/runtime/interaction"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
)

type getUser struct{ ID string }

type user struct {
	ID   string
	Name string
}

type writeAudit struct{ Entry string }

func (writeAudit) NonCancellable() {}

type login struct{ User string }

func (l login) LimiterKey() string { return l.User }

func newTestDispatcher(t *testing.T, conf *configpkg.Config, deps DispatcherDependencies) *Dispatcher {
	t.Helper()
	if conf == nil {
		conf = &configpkg.Config{}
	}
	d, err := NewDispatcher(conf, loggingpkg.NewNopServiceLogger(), deps)
	require.NoError(t, err)
	return d
}

// registerGetUser registers a getUser interactor that echoes the id.
func registerGetUser(t *testing.T, d *Dispatcher) {
	t.Helper()
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{
		Handler: func(ctx context.Context, ic *interaction.Context[getUser], _ cancellation.Signal) (user, error) {
			return user{ID: ic.Request().ID, Name: "Ada"}, nil
		},
	}))
}

type recordedLog struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (r *recordingLogger) record(entry recordedLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingLogger) With(loggingpkg.LogFields) loggingpkg.ServiceLogger { return r }

func (r *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	r.record(recordedLog{level: "debug", msg: msg, fields: fields})
}

func (r *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	r.record(recordedLog{level: "info", msg: msg, fields: fields})
}

func (r *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	r.record(recordedLog{level: "error", msg: msg, err: err, fields: fields})
}

func (r *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	r.record(recordedLog{level: "trace", msg: msg, fields: fields})
}

func (r *recordingLogger) messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}
