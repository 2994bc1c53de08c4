// Package memdocstore registers the [memdocstore] driver with the docstore
// package. Collections opened from mem:// URLs such as mem://users/id live in
// process memory; opening the same URL twice yields the same collection.
package memdocstore

import (
	// Import the docstore package to register the memdocstore driver.
	_ "gocloud.dev/docstore/memdocstore"
)
