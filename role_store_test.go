package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newTestStores[string](t).roles

	role := &Role{Name: "admin", NormalizedName: "ADMIN"}
	require.NoError(t, store.Create(ctx, role))
	require.NotEmpty(t, store.RoleID(role))

	got, err := store.FindByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, role, got)

	got, err = store.FindByName(ctx, "ADMIN")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, role.ID, got.ID)

	store.SetRoleName(got, "administrator")
	store.SetNormalizedRoleName(got, "ADMINISTRATOR")
	require.NoError(t, store.Update(ctx, got))

	got, err = store.FindByID(ctx, role.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "administrator", store.RoleName(got))
	assert.Equal(t, "ADMINISTRATOR", store.NormalizedRoleName(got))

	got, err = store.FindByName(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Delete(ctx, role))
	got, err = store.FindByID(ctx, role.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoleStoreCallerSuppliedID(t *testing.T) {
	ctx := context.Background()
	store := newTestStores[string](t).roles

	require.NoError(t, store.Create(ctx, &Role{ID: "role-editor", Name: "editor", NormalizedName: "EDITOR"}))
	got, err := store.FindByID(ctx, "role-editor")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "editor", got.Name)
}

func TestRoleStoreMissingArguments(t *testing.T) {
	ctx := context.Background()
	store := newTestStores[string](t).roles

	assert.True(t, errors.Is(store.Create(ctx, nil), ErrNilArgument))
	assert.True(t, errors.Is(store.Update(ctx, nil), ErrNilArgument))
	assert.True(t, errors.Is(store.Delete(ctx, nil), ErrNilArgument))

	_, err := store.FindByID(ctx, "")
	assert.True(t, errors.Is(err, ErrNilArgument))
	_, err = store.FindByName(ctx, "")
	assert.True(t, errors.Is(err, ErrNilArgument))

	_, err = NewRoleStore(nil)
	assert.True(t, errors.Is(err, ErrNilArgument))
}

func TestRoleStoreRoles(t *testing.T) {
	ctx := context.Background()
	store := newTestStores[string](t).roles
	for _, name := range []string{"admin", "editor", "viewer"} {
		require.NoError(t, store.Create(ctx, &Role{Name: name}))
	}

	all, err := store.Roles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := store.Roles(ctx, Filter{FieldPath: []string{"name"}, Op: EqualOp, Value: "viewer"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "viewer", some[0].Name)
}
