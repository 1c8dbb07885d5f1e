package runtime

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/names"
)

func echoUser(ctx context.Context, ic *interaction.Context[getUser], _ cancellation.Signal) (user, error) {
	return user{ID: ic.Request().ID}, nil
}

func TestRegisterInteractorValidatesInput(t *testing.T) {
	err := RegisterInteractor(nil, InteractorRegistration[getUser, user]{Handler: echoUser})
	assert.ErrorIs(t, err, errspkg.ErrDispatcherRequired)

	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	err = RegisterInteractor(d, InteractorRegistration[getUser, user]{})
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)

	err = RegisterInteractor(d, InteractorRegistration[error, user]{
		Handler: func(context.Context, *interaction.Context[error], cancellation.Signal) (user, error) {
			return user{}, nil
		},
	})
	assert.ErrorIs(t, err, errspkg.ErrRequestTypeRequired)
}

func TestRegisterInteractorRejectsDuplicates(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{Handler: echoUser}))

	err := RegisterInteractor(d, InteractorRegistration[getUser, user]{Name: "Other", Handler: echoUser})
	assert.ErrorIs(t, err, errspkg.ErrDuplicateInteractor)
	assert.Contains(t, err.Error(), "Other")

	err = RegisterInteractor(d, InteractorRegistration[*getUser, user]{
		Handler: func(ctx context.Context, ic *interaction.Context[*getUser], _ cancellation.Signal) (user, error) {
			return user{}, nil
		},
	})
	assert.ErrorIs(t, err, errspkg.ErrDuplicateInteractor)
}

func TestRegistrationsDescribeInteractors(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{
		Handler:      echoUser,
		Dependencies: []string{"users-db"},
	}))
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[writeAudit, bool]{
		Name: "AuditWriter",
		Handler: func(context.Context, *interaction.Context[writeAudit], cancellation.Signal) (bool, error) {
			return true, nil
		},
		Remote: true,
	}))

	infos := d.Registry().Registrations()
	require.Len(t, infos, 2)

	assert.Equal(t, "getUserInteractor", infos[0].Name)
	assert.Equal(t, names.OfType[getUser](), infos[0].RequestType)
	assert.Equal(t, names.OfType[user](), infos[0].ResponseType)
	assert.False(t, infos[0].Remote)
	require.NotNil(t, infos[0].Stats)
	require.Len(t, infos[0].Stats.Dependencies, 1)
	assert.Equal(t, DependencyStatusUnknown, infos[0].Stats.Dependencies[0].Status)

	assert.Equal(t, "AuditWriter", infos[1].Name)
	assert.True(t, infos[1].Remote)
}

func TestRegistryResolveAndLookup(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{Handler: echoUser}))

	h, ok := d.Registry().Resolve(reflect.TypeFor[getUser]())
	require.True(t, ok)
	require.NotNil(t, h)

	h, ok = d.Registry().Resolve(reflect.TypeFor[writeAudit]())
	assert.False(t, ok)
	assert.Nil(t, h)

	reg, ok := d.Registry().Lookup(names.OfType[getUser]())
	require.True(t, ok)
	assert.Equal(t, "getUserInteractor", reg.Info().Name)

	_, ok = d.Registry().Lookup("github.com/acme/unknown.Request")
	assert.False(t, ok)
}

func TestRegistrationDecodeContinuesInvocation(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{Handler: echoUser}))
	reg, ok := d.Registry().Lookup(names.OfType[getUser]())
	require.True(t, ok)

	id := ids.NewInvocationID()
	inv, err := reg.Decode(id, []byte(`{"ID":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, id, inv.InvocationID())
	assert.Equal(t, getUser{ID: "7"}, inv.RequestValue())

	got, err := d.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, user{ID: "7"}, got)

	inv, err = reg.Decode(id, []byte("null"))
	require.NoError(t, err)
	assert.Equal(t, getUser{}, inv.RequestValue())

	_, err = reg.Decode(id, []byte(`{"ID":`))
	assert.Error(t, err)
}

func TestTypedHandlerRejectsForeignInvocations(t *testing.T) {
	h := typedHandler[getUser, user](echoUser)

	_, err := h.Invoke(context.Background(), interaction.New(writeAudit{}), cancellation.Never)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errspkg.ErrContextRequired))
	assert.Contains(t, err.Error(), names.OfType[getUser]())
}
