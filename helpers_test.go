package identity

import (
	"testing"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/stretchr/testify/require"
	"gocloud.dev/docstore"
	"gocloud.dev/docstore/memdocstore"
)

func openMemCollection(t *testing.T) *docstore.Collection {
	t.Helper()
	coll, err := memdocstore.OpenCollection(session.KeyField, nil)
	require.NoError(t, err)
	return coll
}

// newTestSession returns a session over fresh in-memory collections.
func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New(session.Collections{
		Users:     openMemCollection(t),
		Roles:     openMemCollection(t),
		UserRoles: openMemCollection(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type testStores[K comparable] struct {
	session *session.Session
	roles   *RoleStore
	users   *UserRoleStore[K]
}

func newTestStores[K comparable](t *testing.T) *testStores[K] {
	t.Helper()
	s := newTestSession(t)
	roles, err := NewRoleStore(s)
	require.NoError(t, err)
	users, err := NewUserRoleStore[K](s, roles)
	require.NoError(t, err)
	return &testStores[K]{session: s, roles: roles, users: users}
}
