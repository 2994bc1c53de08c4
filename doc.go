/*
Package identity provides user, role and user-role stores for an identity
framework, built on top of gocloud.dev docstore.

It supports every docstore provider, including Google Cloud Firestore, Amazon
DynamoDB, MongoDB and the In-Memory Document Store. Enable a provider by
importing the matching drivers package:

	import _ "github.com/bartventer/identity-go-cloud-adapter/drivers/memdocstore"

Users, roles and memberships live in three collections reached through a
[session.Session]. Memberships are rows of a join collection linking a user
key to a role key; listing the roles of a user (or the users in a role) reads
the join rows and then fetches the referenced documents in batches.

Every store write commits the whole session it was built on, including writes
staged by sibling stores. Callers composing several operations in one unit of
work should expect the first write to flush the others.

A [PolicyAdapter] exposes memberships to a casbin enforcer as grouping ("g")
rules.

For more information on the Go CDK and the Go CDK Docstore package, visit:
- Go CDK: https://gocloud.dev/
- Go CDK Docstore: https://gocloud.dev/howto/docstore/
*/
package identity
