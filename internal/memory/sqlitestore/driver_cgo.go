//go:build sqlite_vec && cgo

package sqlitestore

import (
	_ "github.com/mattn/go-sqlite3"
)
