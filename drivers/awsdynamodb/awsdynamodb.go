// Package awsdynamodb registers the [awsdynamodb] driver with the docstore
// package so identity collections can be opened from dynamodb:// URLs, e.g.
// dynamodb://users?partition_key=id.
package awsdynamodb

import (
	// Import the docstore package to register the awsdynamodb driver.
	_ "gocloud.dev/docstore/awsdynamodb"
)
