package session

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "IDENTITY"

const (
	defaultTimeout time.Duration = 30 * time.Second

	defaultUsersURL     = "mem://users/" + KeyField
	defaultRolesURL     = "mem://roles/" + KeyField
	defaultUserRolesURL = "mem://user_roles/" + KeyField
)

// Config is the configuration for a Session opened with Open.
//
// Each URL is a gocloud.dev docstore collection URL
// (e.g. mongo://identity/users?id_field=id). The collection's key field must
// be KeyField.
type Config struct {
	UsersURL     string        `envconfig:"USERS_URL"`      // collection holding users
	RolesURL     string        `envconfig:"ROLES_URL"`      // collection holding roles
	UserRolesURL string        `envconfig:"USER_ROLES_URL"` // join collection holding memberships
	Timeout      time.Duration `envconfig:"TIMEOUT"`        // the timeout for any single docstore call
}

// ConfigFromEnvironment returns a Config populated from IDENTITY_* environment
// variables. Unset values fall back to in-memory collections and a 30s
// timeout.
func ConfigFromEnvironment() (*Config, error) {
	c := &Config{}
	if err := envconfig.Process(envconfigPrefix, c); err != nil {
		return nil, errors.Wrap(
			err,
			"error getting identity store configuration from environment",
		)
	}
	c.setDefaults()
	return c, nil
}

func (c *Config) setDefaults() {
	if c.UsersURL == "" {
		c.UsersURL = defaultUsersURL
	}
	if c.RolesURL == "" {
		c.RolesURL = defaultRolesURL
	}
	if c.UserRolesURL == "" {
		c.UserRolesURL = defaultUserRolesURL
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}
