package identity

import (
	"context"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Role is an identity role. Empty strings are absent values.
type Role struct {
	ID             string
	Name           string
	NormalizedName string
}

type roleDocument struct {
	ID             string `docstore:"id"`
	Name           string `docstore:"name,omitempty"`
	NormalizedName string `docstore:"normalizedName,omitempty"`
}

func (d *roleDocument) DocumentKey() string { return d.ID }

const fieldNormalizedName = "normalizedName"

func (d *roleDocument) role() *Role {
	return &Role{ID: d.ID, Name: d.Name, NormalizedName: d.NormalizedName}
}

func newRoleDocument(role *Role) *roleDocument {
	return &roleDocument{ID: role.ID, Name: role.Name, NormalizedName: role.NormalizedName}
}

// RoleFinder looks roles up by normalized name.
type RoleFinder interface {
	FindByName(ctx context.Context, normalizedRoleName string) (*Role, error)
}

var _ RoleFinder = (*RoleStore)(nil)

// RoleStore stores roles in the session's roles collection.
type RoleStore struct {
	session *session.Session
	log     *zap.Logger
}

// NewRoleStore returns a RoleStore over s.
func NewRoleStore(s *session.Session, opts ...Option) (*RoleStore, error) {
	if s == nil {
		return nil, missing("session")
	}
	o := newOptions(opts)
	return &RoleStore{
		session: s,
		log:     o.log.With(zap.String("store", "roles")),
	}, nil
}

// RoleID returns the identifier of role.
func (s *RoleStore) RoleID(role *Role) string {
	return role.ID
}

// RoleName returns the name of role.
func (s *RoleStore) RoleName(role *Role) string {
	return role.Name
}

// SetRoleName sets the name of role. Nothing is stored until Update.
func (s *RoleStore) SetRoleName(role *Role, roleName string) {
	role.Name = roleName
}

// NormalizedRoleName returns the normalized name of role.
func (s *RoleStore) NormalizedRoleName(role *Role) string {
	return role.NormalizedName
}

// SetNormalizedRoleName sets the normalized name of role. Nothing is stored
// until Update.
func (s *RoleStore) SetNormalizedRoleName(role *Role, normalizedName string) {
	role.NormalizedName = normalizedName
}

// Create stores a new role and commits the session. A role without an ID is
// given a random one.
func (s *RoleStore) Create(ctx context.Context, role *Role) error {
	if role == nil {
		return missing("role")
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	s.log.Debug("create role", zap.String("id", role.ID), zap.String("name", role.Name))
	s.session.Insert(session.Roles, newRoleDocument(role))
	return s.session.SaveChanges(ctx)
}

// Update replaces the stored role and commits the session.
func (s *RoleStore) Update(ctx context.Context, role *Role) error {
	if role == nil {
		return missing("role")
	}
	s.log.Debug("update role", zap.String("id", role.ID))
	s.session.Update(session.Roles, newRoleDocument(role))
	return s.session.SaveChanges(ctx)
}

// Delete removes the role and commits the session. Memberships naming the
// role are left in place.
func (s *RoleStore) Delete(ctx context.Context, role *Role) error {
	if role == nil {
		return missing("role")
	}
	s.log.Debug("delete role", zap.String("id", role.ID))
	s.session.Delete(session.Roles, newRoleDocument(role))
	return s.session.SaveChanges(ctx)
}

// FindByID loads the role with the given identifier, or returns nil if there
// is none.
func (s *RoleStore) FindByID(ctx context.Context, roleID string) (*Role, error) {
	if roleID == "" {
		return nil, missing("roleID")
	}
	doc := &roleDocument{ID: roleID}
	found, err := s.session.Load(ctx, session.Roles, doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.role(), nil
}

// FindByName returns the role whose normalized name equals
// normalizedRoleName, or nil if there is none.
func (s *RoleStore) FindByName(ctx context.Context, normalizedRoleName string) (*Role, error) {
	if normalizedRoleName == "" {
		return nil, missing("normalizedRoleName")
	}
	q := s.session.Query(session.Roles).
		Where(fieldNormalizedName, EqualOp, normalizedRoleName)
	doc, err := session.First[roleDocument](ctx, s.session, q)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.role(), nil
}

// Roles returns the roles matching every filter. With no filters it returns
// all roles.
func (s *RoleStore) Roles(ctx context.Context, filters ...Filter) ([]*Role, error) {
	q := applyFilters(s.session.Query(session.Roles), filters)
	docs, err := session.All[roleDocument](ctx, s.session, q)
	if err != nil {
		return nil, err
	}
	roles := make([]*Role, 0, len(docs))
	for _, doc := range docs {
		roles = append(roles, doc.role())
	}
	return roles, nil
}
