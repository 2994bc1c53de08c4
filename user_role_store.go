package identity

import (
	"context"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocloud.dev/docstore"
)

// userRoleDocument is a row of the user_roles join collection. UserID holds
// the encoded user key.
type userRoleDocument struct {
	ID     string `docstore:"id"`
	UserID string `docstore:"userId"`
	RoleID string `docstore:"roleId"`
}

func (d *userRoleDocument) DocumentKey() string { return d.ID }

const (
	fieldUserID = "userId"
	fieldRoleID = "roleId"
)

// UserRoleStore is a UserStore that also manages role membership. Roles are
// resolved by normalized name through a RoleFinder, normally the RoleStore
// sharing the same session.
//
// Membership rows are neither deduplicated nor removed when their user or
// role is deleted.
type UserRoleStore[K comparable] struct {
	*UserStore[K]
	roles RoleFinder
	log   *zap.Logger
}

// NewUserRoleStore returns a UserRoleStore for key type K.
func NewUserRoleStore[K comparable](s *session.Session, roles RoleFinder, opts ...Option) (*UserRoleStore[K], error) {
	if roles == nil {
		return nil, missing("roles")
	}
	users, err := NewUserStore[K](s, opts...)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &UserRoleStore[K]{
		UserStore: users,
		roles:     roles,
		log:       o.log.With(zap.String("store", "user_roles")),
	}, nil
}

func (s *UserRoleStore[K]) findRole(ctx context.Context, normalizedRoleName string) (*Role, error) {
	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, &RoleNotFoundError{Name: normalizedRoleName}
	}
	return role, nil
}

func (s *UserRoleStore[K]) membershipQuery(userID, roleID string) *docstore.Query {
	q := s.session.Query(session.UserRoles)
	if userID != "" {
		q = q.Where(fieldUserID, EqualOp, userID)
	}
	if roleID != "" {
		q = q.Where(fieldRoleID, EqualOp, roleID)
	}
	return q
}

// AddToRole adds user to the role named normalizedRoleName and commits the
// session. It fails with a *RoleNotFoundError if the role does not exist.
// Adding a user to a role twice stores two memberships.
func (s *UserRoleStore[K]) AddToRole(ctx context.Context, user *User[K], normalizedRoleName string) error {
	if user == nil {
		return missing("user")
	}
	if normalizedRoleName == "" {
		return missing("roleName")
	}
	role, err := s.findRole(ctx, normalizedRoleName)
	if err != nil {
		return err
	}

	doc := &userRoleDocument{
		ID:     uuid.NewString(),
		UserID: s.UserID(user),
		RoleID: role.ID,
	}
	s.log.Debug("add to role", zap.String("user", doc.UserID), zap.String("role", role.ID))
	s.session.Insert(session.UserRoles, doc)
	return s.session.SaveChanges(ctx)
}

// RemoveFromRole removes one membership of user in the role named
// normalizedRoleName and commits the session. It fails with a
// *RoleNotFoundError if the role does not exist, and does nothing if the user
// is not in the role.
func (s *UserRoleStore[K]) RemoveFromRole(ctx context.Context, user *User[K], normalizedRoleName string) error {
	if user == nil {
		return missing("user")
	}
	if normalizedRoleName == "" {
		return missing("roleName")
	}
	role, err := s.findRole(ctx, normalizedRoleName)
	if err != nil {
		return err
	}

	doc, err := session.First[userRoleDocument](ctx, s.session, s.membershipQuery(s.UserID(user), role.ID))
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	s.log.Debug("remove from role", zap.String("user", doc.UserID), zap.String("role", role.ID))
	s.session.Delete(session.UserRoles, doc)
	return s.session.SaveChanges(ctx)
}

// RolesForUser returns the names of the roles user is in. The order is
// whatever the provider returns.
func (s *UserRoleStore[K]) RolesForUser(ctx context.Context, user *User[K]) ([]string, error) {
	if user == nil {
		return nil, missing("user")
	}
	rows, err := session.All[userRoleDocument](ctx, s.session, s.membershipQuery(s.UserID(user), ""))
	if err != nil {
		return nil, err
	}
	roles, err := s.includeRoles(ctx, rows)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

func (s *UserRoleStore[K]) includeRoles(ctx context.Context, rows []*userRoleDocument) ([]*roleDocument, error) {
	roleIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		roleIDs = append(roleIDs, row.RoleID)
	}
	return session.Include[roleDocument](ctx, s.session, session.Roles, roleIDs)
}

// IsInRole reports whether user is in the role named normalizedRoleName. A
// role that does not exist is reported as false, not as an error.
func (s *UserRoleStore[K]) IsInRole(ctx context.Context, user *User[K], normalizedRoleName string) (bool, error) {
	if user == nil {
		return false, missing("user")
	}
	if normalizedRoleName == "" {
		return false, missing("roleName")
	}
	role, err := s.roles.FindByName(ctx, normalizedRoleName)
	if err != nil || role == nil {
		return false, err
	}
	return session.Any(ctx, s.session, s.membershipQuery(s.UserID(user), role.ID))
}

// UsersInRole returns the users in the role named normalizedRoleName. It
// fails with a *RoleNotFoundError if the role does not exist. Memberships
// whose user no longer exists are skipped.
func (s *UserRoleStore[K]) UsersInRole(ctx context.Context, normalizedRoleName string) ([]*User[K], error) {
	if normalizedRoleName == "" {
		return nil, missing("roleName")
	}
	role, err := s.findRole(ctx, normalizedRoleName)
	if err != nil {
		return nil, err
	}
	rows, err := session.All[userRoleDocument](ctx, s.session, s.membershipQuery("", role.ID))
	if err != nil {
		return nil, err
	}
	userIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	docs, err := session.Include[userDocument](ctx, s.session, session.Users, userIDs)
	if err != nil {
		return nil, err
	}
	return s.fromDocuments(docs)
}
