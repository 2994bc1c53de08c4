// Package gcpfirestore registers the [gcpfirestore] driver with the docstore
// package so identity collections can be opened from firestore:// URLs, e.g.
// firestore://projects/p/databases/(default)/documents/users?name_field=id.
package gcpfirestore

import (
	// Import the docstore package to register the gcpfirestore driver.
	_ "gocloud.dev/docstore/gcpfirestore"
)
