// Package session provides a unit of work over the gocloud.dev docstore
// collections that back the identity stores.
//
// Writes are staged with Insert, Update and Delete and applied together by
// SaveChanges. Every store built on a Session shares its pending writes, so
// a SaveChanges issued by one store also commits whatever the others staged.
package session

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"
)

// KeyField is the key field of every identity collection.
const KeyField = "id"

// Name identifies one of the collections held by a Session.
type Name string

const (
	// Users is the collection holding user documents.
	Users Name = "users"
	// Roles is the collection holding role documents.
	Roles Name = "roles"
	// UserRoles is the join collection linking users to roles.
	UserRoles Name = "user_roles"
)

// Document is a docstore document that can report its key. The key is used
// to split staged writes into action lists that touch each document once.
type Document interface {
	DocumentKey() string
}

// Collections holds the docstore collections a Session operates on.
type Collections struct {
	Users     *docstore.Collection
	Roles     *docstore.Collection
	UserRoles *docstore.Collection
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

type pendingOp struct {
	kind opKind
	name Name
	doc  Document
}

// Session is a unit of work over the identity collections. It should not be
// copied after first use.
//
// Staging is safe from several goroutines, but a Session is not safe for
// concurrent SaveChanges: a call can commit writes staged by another caller,
// and that caller's own SaveChanges then returns nil without seeing the
// outcome. Use one Session per request or similar scope.
type Session struct {
	collections Collections
	timeout     time.Duration
	log         *zap.Logger

	mu      sync.Mutex
	pending []pendingOp
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used by the Session.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTimeout sets the timeout applied to each docstore call.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a Session over already opened collections.
func New(collections Collections, opts ...Option) (*Session, error) {
	if collections.Users == nil || collections.Roles == nil ||
		collections.UserRoles == nil {
		return nil, errors.New("users, roles and user_roles collections are required")
	}
	s := &Session{
		collections: collections,
		timeout:     defaultTimeout,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// finalizer is the destructor for sessions opened by Open.
func finalizer(s *Session) {
	_ = s.Close()
}

// Open opens the collections named by config and returns a Session over
// them. A nil config opens in-memory collections; the memdocstore driver must
// be registered for that to work.
func Open(ctx context.Context, config *Config, opts ...Option) (*Session, error) {
	if config == nil {
		config = &Config{}
	}
	config.setDefaults()

	var collections Collections
	targets := []struct {
		name Name
		url  string
		dst  **docstore.Collection
	}{
		{Users, config.UsersURL, &collections.Users},
		{Roles, config.RolesURL, &collections.Roles},
		{UserRoles, config.UserRolesURL, &collections.UserRoles},
	}
	for _, target := range targets {
		coll, err := docstore.OpenCollection(ctx, target.url)
		if err != nil {
			closeAll(collections)
			return nil, errors.Wrapf(
				err,
				"could not open %s collection",
				target.name,
			)
		}
		*target.dst = coll
	}

	s, err := New(collections, append([]Option{WithTimeout(config.Timeout)}, opts...)...)
	if err != nil {
		closeAll(collections)
		return nil, err
	}

	// Call the destructor when the object is released.
	runtime.SetFinalizer(s, finalizer)

	return s, nil
}

func closeAll(collections Collections) {
	for _, coll := range []*docstore.Collection{
		collections.Users,
		collections.Roles,
		collections.UserRoles,
	} {
		if coll != nil {
			_ = coll.Close()
		}
	}
}

// Close closes the Session's collections. Pending writes are discarded.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil

	var first error
	for name, coll := range map[Name]**docstore.Collection{
		Users:     &s.collections.Users,
		Roles:     &s.collections.Roles,
		UserRoles: &s.collections.UserRoles,
	} {
		if *coll == nil {
			continue
		}
		if err := (*coll).Close(); err != nil {
			s.log.Warn("close collection error",
				zap.String("collection", string(name)),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
		*coll = nil
	}
	return first
}

func (s *Session) collection(name Name) *docstore.Collection {
	switch name {
	case Users:
		return s.collections.Users
	case Roles:
		return s.collections.Roles
	case UserRoles:
		return s.collections.UserRoles
	}
	panic("session: unknown collection " + string(name))
}

func (s *Session) stage(kind opKind, name Name, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pendingOp{kind: kind, name: name, doc: doc})
}

// Insert stages the creation of doc. Creation fails at SaveChanges if a
// document with the same key exists.
func (s *Session) Insert(name Name, doc Document) {
	s.stage(opInsert, name, doc)
}

// Update stages a full replacement of doc.
func (s *Session) Update(name Name, doc Document) {
	s.stage(opUpdate, name, doc)
}

// Delete stages the removal of doc. Only its key is used.
func (s *Session) Delete(name Name, doc Document) {
	s.stage(opDelete, name, doc)
}

// Pending returns the number of staged writes.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// SaveChanges applies every staged write in staging order. The pending list
// is emptied before anything is sent, so a failed commit is not retried by a
// later call. It must not be called concurrently on the same Session.
func (s *Session) SaveChanges(ctx context.Context) error {
	s.mu.Lock()
	ops := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, batch := range batches(ops) {
		actionList := s.collection(batch[0].name).Actions()
		for _, op := range batch {
			switch op.kind {
			case opInsert:
				actionList.Create(op.doc)
			case opUpdate:
				actionList.Replace(op.doc)
			case opDelete:
				actionList.Delete(op.doc)
			}
		}
		s.log.Debug("saving changes",
			zap.String("collection", string(batch[0].name)),
			zap.Int("actions", len(batch)),
		)
		if err := actionList.Do(ctx); err != nil {
			return err
		}
	}
	return nil
}

// batches splits ops into runs that target one collection and touch each
// document at most once.
func batches(ops []pendingOp) [][]pendingOp {
	var (
		out  [][]pendingOp
		cur  []pendingOp
		keys map[string]struct{}
	)
	for _, op := range ops {
		key := op.doc.DocumentKey()
		_, seen := keys[key]
		if len(cur) > 0 && (cur[0].name != op.name || seen) {
			out = append(out, cur)
			cur = nil
		}
		if len(cur) == 0 {
			keys = make(map[string]struct{})
		}
		cur = append(cur, op)
		keys[key] = struct{}{}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Load fetches the document whose key is set in doc. It reports false if no
// such document exists.
func (s *Session) Load(ctx context.Context, name Name, doc Document) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.collection(name).Get(ctx, doc); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Query starts a query against the named collection.
func (s *Session) Query(name Name) *docstore.Query {
	return s.collection(name).Query()
}
