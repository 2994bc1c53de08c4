package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRole(t *testing.T, store *RoleStore, name string) *Role {
	t.Helper()
	role := &Role{Name: name, NormalizedName: strings.ToUpper(name)}
	require.NoError(t, store.Create(context.Background(), role))
	return role
}

func TestUserRoleScenario(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[uuid.UUID](t)

	createRole(t, stores.roles, "admin")
	bob := &User[uuid.UUID]{UserName: "bob", NormalizedUserName: "BOB"}
	require.NoError(t, stores.users.Create(ctx, bob))

	require.NoError(t, stores.users.AddToRole(ctx, bob, "ADMIN"))

	roles, err := stores.users.RolesForUser(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, roles)

	in, err := stores.users.IsInRole(ctx, bob, "ADMIN")
	require.NoError(t, err)
	assert.True(t, in)

	require.NoError(t, stores.users.RemoveFromRole(ctx, bob, "ADMIN"))

	roles, err = stores.users.RolesForUser(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, roles)

	in, err = stores.users.IsInRole(ctx, bob, "ADMIN")
	require.NoError(t, err)
	assert.False(t, in)
}

func TestRolesForUserSetEquality(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[int64](t)

	createRole(t, stores.roles, "r1")
	createRole(t, stores.roles, "r2")
	createRole(t, stores.roles, "r3")

	alice := &User[int64]{ID: 1, UserName: "alice"}
	carol := &User[int64]{ID: 2, UserName: "carol"}
	require.NoError(t, stores.users.Create(ctx, alice))
	require.NoError(t, stores.users.Create(ctx, carol))

	require.NoError(t, stores.users.AddToRole(ctx, alice, "R1"))
	require.NoError(t, stores.users.AddToRole(ctx, alice, "R2"))
	require.NoError(t, stores.users.AddToRole(ctx, carol, "R3"))

	roles, err := stores.users.RolesForUser(ctx, alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, roles)

	roles, err = stores.users.RolesForUser(ctx, &User[int64]{ID: 99})
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestMembershipMissingRole(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)
	user := &User[string]{ID: "u1"}
	require.NoError(t, stores.users.Create(ctx, user))

	err := stores.users.AddToRole(ctx, user, "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoleNotFound))
	var notFound *RoleNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "NOPE", notFound.Name)

	err = stores.users.RemoveFromRole(ctx, user, "NOPE")
	assert.True(t, errors.Is(err, ErrRoleNotFound))

	_, err = stores.users.UsersInRole(ctx, "NOPE")
	assert.True(t, errors.Is(err, ErrRoleNotFound))

	// IsInRole reports a missing role as false rather than failing.
	in, err := stores.users.IsInRole(ctx, user, "NOPE")
	require.NoError(t, err)
	assert.False(t, in)
}

func TestRemoveFromRoleWithoutMembership(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)
	createRole(t, stores.roles, "admin")
	user := &User[string]{ID: "u1"}
	require.NoError(t, stores.users.Create(ctx, user))

	require.NoError(t, stores.users.RemoveFromRole(ctx, user, "ADMIN"))
	require.Zero(t, stores.session.Pending())
}

func TestAddToRoleTwice(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)
	createRole(t, stores.roles, "admin")
	user := &User[string]{ID: "u1"}
	require.NoError(t, stores.users.Create(ctx, user))

	require.NoError(t, stores.users.AddToRole(ctx, user, "ADMIN"))
	require.NoError(t, stores.users.AddToRole(ctx, user, "ADMIN"))

	rows, err := session.All[userRoleDocument](ctx, stores.session, stores.session.Query(session.UserRoles))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// The duplicate membership resolves to a single role.
	roles, err := stores.users.RolesForUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, roles)

	// One removal leaves the second membership in place.
	require.NoError(t, stores.users.RemoveFromRole(ctx, user, "ADMIN"))
	in, err := stores.users.IsInRole(ctx, user, "ADMIN")
	require.NoError(t, err)
	assert.True(t, in)
}

func TestUsersInRole(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[int32](t)
	createRole(t, stores.roles, "staff")
	createRole(t, stores.roles, "guest")

	var staff []*User[int32]
	for i := int32(1); i <= 15; i++ {
		user := &User[int32]{ID: i, UserName: fmt.Sprintf("user%d", i)}
		require.NoError(t, stores.users.Create(ctx, user))
		if i%2 == 1 {
			require.NoError(t, stores.users.AddToRole(ctx, user, "STAFF"))
			staff = append(staff, user)
		} else {
			require.NoError(t, stores.users.AddToRole(ctx, user, "GUEST"))
		}
	}

	got, err := stores.users.UsersInRole(ctx, "STAFF")
	require.NoError(t, err)
	assert.ElementsMatch(t, staff, got)
}

func TestDeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)
	admin := createRole(t, stores.roles, "admin")
	user := &User[string]{ID: "u1"}
	require.NoError(t, stores.users.Create(ctx, user))
	require.NoError(t, stores.users.AddToRole(ctx, user, "ADMIN"))

	require.NoError(t, stores.users.Delete(ctx, user))

	rows, err := session.All[userRoleDocument](ctx, stores.session, stores.session.Query(session.UserRoles))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	users, err := stores.users.UsersInRole(ctx, "ADMIN")
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, stores.roles.Delete(ctx, admin))
	roles, err := stores.users.RolesForUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestWriteCommitsWholeSession(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)

	// A user staged directly on the session is flushed by the role store.
	stores.session.Insert(session.Users, &userDocument{ID: "staged", UserName: "staged"})
	createRole(t, stores.roles, "admin")
	require.Zero(t, stores.session.Pending())

	got, err := stores.users.FindByID(ctx, "staged")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "staged", got.UserName)
}

func TestMembershipMissingArguments(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores[string](t)
	user := &User[string]{ID: "u1"}

	assert.True(t, errors.Is(stores.users.AddToRole(ctx, nil, "ADMIN"), ErrNilArgument))
	assert.True(t, errors.Is(stores.users.AddToRole(ctx, user, ""), ErrNilArgument))
	assert.True(t, errors.Is(stores.users.RemoveFromRole(ctx, nil, "ADMIN"), ErrNilArgument))
	_, err := stores.users.RolesForUser(ctx, nil)
	assert.True(t, errors.Is(err, ErrNilArgument))
	_, err = stores.users.IsInRole(ctx, user, "")
	assert.True(t, errors.Is(err, ErrNilArgument))
	_, err = stores.users.UsersInRole(ctx, "")
	assert.True(t, errors.Is(err, ErrNilArgument))

	_, err = NewUserRoleStore[string](stores.session, nil)
	assert.True(t, errors.Is(err, ErrNilArgument))
}
