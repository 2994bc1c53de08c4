package identity

import (
	"context"

	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// User is an identity user keyed by K. Empty strings are absent values.
type User[K comparable] struct {
	ID                 K
	UserName           string
	NormalizedUserName string
}

// userDocument is the stored form of a User; ID is the encoded key.
type userDocument struct {
	ID                 string `docstore:"id"`
	UserName           string `docstore:"userName,omitempty"`
	NormalizedUserName string `docstore:"normalizedUserName,omitempty"`
}

func (d *userDocument) DocumentKey() string { return d.ID }

const fieldNormalizedUserName = "normalizedUserName"

// UserStore stores users in the session's users collection.
type UserStore[K comparable] struct {
	session *session.Session
	codec   KeyCodec[K]
	log     *zap.Logger
}

// NewUserStore returns a UserStore for key type K. It fails with
// ErrUnsupportedKeyType if K is not string, uuid.UUID, int32 or int64.
func NewUserStore[K comparable](s *session.Session, opts ...Option) (*UserStore[K], error) {
	if s == nil {
		return nil, missing("session")
	}
	codec, err := NewKeyCodec[K]()
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &UserStore[K]{
		session: s,
		codec:   codec,
		log:     o.log.With(zap.String("store", "users"), zap.Stringer("key", codec.Kind())),
	}, nil
}

// Codec returns the KeyCodec used for user keys.
func (s *UserStore[K]) Codec() KeyCodec[K] {
	return s.codec
}

func (s *UserStore[K]) toDocument(user *User[K]) *userDocument {
	return &userDocument{
		ID:                 s.codec.Encode(user.ID),
		UserName:           user.UserName,
		NormalizedUserName: user.NormalizedUserName,
	}
}

func (s *UserStore[K]) fromDocument(doc *userDocument) (*User[K], error) {
	key, ok := s.codec.Decode(doc.ID)
	if !ok {
		return nil, errors.Errorf("stored user id %q is not a valid %s key", doc.ID, s.codec.Kind())
	}
	return &User[K]{
		ID:                 key,
		UserName:           doc.UserName,
		NormalizedUserName: doc.NormalizedUserName,
	}, nil
}

func (s *UserStore[K]) fromDocuments(docs []*userDocument) ([]*User[K], error) {
	users := make([]*User[K], 0, len(docs))
	for _, doc := range docs {
		user, err := s.fromDocument(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// UserID returns the string identifier of user.
func (s *UserStore[K]) UserID(user *User[K]) string {
	return s.codec.Encode(user.ID)
}

// UserName returns the user name of user.
func (s *UserStore[K]) UserName(user *User[K]) string {
	return user.UserName
}

// SetUserName sets the user name of user. Nothing is stored until Update.
func (s *UserStore[K]) SetUserName(user *User[K], userName string) {
	user.UserName = userName
}

// NormalizedUserName returns the normalized user name of user.
func (s *UserStore[K]) NormalizedUserName(user *User[K]) string {
	return user.NormalizedUserName
}

// SetNormalizedUserName sets the normalized user name of user. Nothing is
// stored until Update.
func (s *UserStore[K]) SetNormalizedUserName(user *User[K], normalizedName string) {
	user.NormalizedUserName = normalizedName
}

// Create stores a new user and commits the session. A zero string or UUID key
// is replaced by a random one first. Duplicate keys are rejected only if the
// provider rejects them.
func (s *UserStore[K]) Create(ctx context.Context, user *User[K]) error {
	if user == nil {
		return missing("user")
	}
	var zero K
	if user.ID == zero {
		if key, ok := s.codec.NewKey(); ok {
			user.ID = key
		}
	}

	doc := s.toDocument(user)
	s.log.Debug("create user", zap.String("id", doc.ID))
	s.session.Insert(session.Users, doc)
	return s.session.SaveChanges(ctx)
}

// Update replaces the stored user and commits the session.
func (s *UserStore[K]) Update(ctx context.Context, user *User[K]) error {
	if user == nil {
		return missing("user")
	}
	doc := s.toDocument(user)
	s.log.Debug("update user", zap.String("id", doc.ID))
	s.session.Update(session.Users, doc)
	return s.session.SaveChanges(ctx)
}

// Delete removes the user and commits the session. Memberships of the user
// are left in place.
func (s *UserStore[K]) Delete(ctx context.Context, user *User[K]) error {
	if user == nil {
		return missing("user")
	}
	doc := s.toDocument(user)
	s.log.Debug("delete user", zap.String("id", doc.ID))
	s.session.Delete(session.Users, doc)
	return s.session.SaveChanges(ctx)
}

// FindByID returns the user identified by userID, or nil if there is none.
// An identifier that is not a valid key is reported as nil, not as an error.
func (s *UserStore[K]) FindByID(ctx context.Context, userID string) (*User[K], error) {
	key, ok := s.codec.Decode(userID)
	if !ok {
		s.log.Debug("user id does not decode", zap.String("id", userID))
		return nil, nil
	}
	q := s.session.Query(session.Users).
		Where(session.KeyField, EqualOp, s.codec.Encode(key))
	doc, err := session.First[userDocument](ctx, s.session, q)
	if err != nil || doc == nil {
		return nil, err
	}
	return s.fromDocument(doc)
}

// FindByName returns the user whose normalized user name equals
// normalizedUserName, or nil if there is none. The comparison is the
// provider's string equality.
func (s *UserStore[K]) FindByName(ctx context.Context, normalizedUserName string) (*User[K], error) {
	q := s.session.Query(session.Users).
		Where(fieldNormalizedUserName, EqualOp, normalizedUserName)
	doc, err := session.First[userDocument](ctx, s.session, q)
	if err != nil || doc == nil {
		return nil, err
	}
	return s.fromDocument(doc)
}

// Users returns the users matching every filter. With no filters it returns
// all users.
func (s *UserStore[K]) Users(ctx context.Context, filters ...Filter) ([]*User[K], error) {
	q := applyFilters(s.session.Query(session.Users), filters)
	docs, err := session.All[userDocument](ctx, s.session, q)
	if err != nil {
		return nil, err
	}
	return s.fromDocuments(docs)
}
