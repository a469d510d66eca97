//go:build sqlite_vec && cgo

package semantic

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers the vec0 virtual table module with the mattn/go-sqlite3
	// driver. Without this build tag, vec_probe creation in initVecStore
	// fails and the index falls back to brute-force cosine search.
	vec.Auto()
}
