//go:build cgo

package semantic

import (
	_ "github.com/mattn/go-sqlite3"
)

// sqlDriverName is the database/sql driver initVecStore opens. Under cgo the
// real mattn/go-sqlite3 binding is used, which sqlite-vec's cgo bindings
// (init_vec.go) can attach vec0 to when built with the sqlite_vec tag.
const sqlDriverName = "sqlite3"
