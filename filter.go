package identity

import (
	"strings"

	"gocloud.dev/docstore"
	"gocloud.dev/docstore/driver"
)

// Filter restricts the documents returned by UserStore.Users and
// RoleStore.Roles. FieldPath names a document field using its stored name
// (e.g. "normalizedUserName"); an empty Op means EqualOp.
type Filter = driver.Filter

// EqualOp is the operator for equality.
const EqualOp = driver.EqualOp

func applyFilters(query *docstore.Query, filters []Filter) *docstore.Query {
	for _, f := range filters {
		fieldPath := docstore.FieldPath(strings.Join(f.FieldPath, ".")) // dot separated path (e.g. "field.subfield")
		op := f.Op
		if op == "" {
			op = EqualOp
		}
		query = query.Where(fieldPath, op, f.Value)
	}
	return query
}
