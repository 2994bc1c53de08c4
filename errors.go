package identity

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNilArgument is returned when a required argument is nil or empty.
	ErrNilArgument = errors.New("identity: required argument is missing")

	// ErrUnsupportedKeyType is returned when a store is built for a key type
	// with no KeyCodec.
	ErrUnsupportedKeyType = errors.New("identity: unsupported key type")

	// ErrRoleNotFound matches every *RoleNotFoundError.
	ErrRoleNotFound = errors.New("identity: role not found")

	// ErrUnsupportedPolicyType is returned by PolicyAdapter for any policy
	// other than a "g" grouping rule.
	ErrUnsupportedPolicyType = errors.New("identity: unsupported policy type")

	// ErrSavePolicyUnsupported is returned by PolicyAdapter.SavePolicy.
	ErrSavePolicyUnsupported = errors.New("identity: saving a whole policy is not supported")
)

// RoleNotFoundError is returned by membership operations that name a role
// which does not exist.
type RoleNotFoundError struct {
	Name string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("role with name of %s not found", e.Name)
}

// Is reports whether target is ErrRoleNotFound.
func (e *RoleNotFoundError) Is(target error) bool {
	return target == ErrRoleNotFound
}

func missing(name string) error {
	return errors.Wrap(ErrNilArgument, name)
}
