// Package mongodocstore registers the [mongodocstore] driver with the docstore
// package, so identity collections can be opened from mongo:// URLs such as
// mongo://identity/users?id_field=id, and opens identity sessions on an
// existing MongoDB client.
package mongodocstore

import (
	"github.com/bartventer/identity-go-cloud-adapter/session"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"gocloud.dev/docstore"
	"gocloud.dev/docstore/mongodocstore"
)

// OpenSession opens the users, roles and user_roles collections of database
// and returns a Session over them. Closing the Session does not disconnect
// client.
func OpenSession(client *mongo.Client, database string, opts ...session.Option) (*session.Session, error) {
	if client == nil {
		return nil, errors.New("mongo client is required")
	}
	db := client.Database(database)

	var collections session.Collections
	targets := []struct {
		name session.Name
		dst  **docstore.Collection
	}{
		{session.Users, &collections.Users},
		{session.Roles, &collections.Roles},
		{session.UserRoles, &collections.UserRoles},
	}
	for _, target := range targets {
		coll, err := mongodocstore.OpenCollection(
			db.Collection(string(target.name)),
			session.KeyField,
			nil,
		)
		if err != nil {
			closeAll(collections)
			return nil, errors.Wrapf(
				err,
				"error opening mongo collection %s.%s",
				database,
				target.name,
			)
		}
		*target.dst = coll
	}
	s, err := session.New(collections, opts...)
	if err != nil {
		closeAll(collections)
		return nil, err
	}
	return s, nil
}

func closeAll(collections session.Collections) {
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
