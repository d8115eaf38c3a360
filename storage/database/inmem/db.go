package inmemdb

import (
	"sync"

	"github.com/trezcool/neighborguard/core/patrol"
	"github.com/trezcool/neighborguard/core/user"
)

type (
	DB struct {
		user *userTable
		scan *scanTable
	}

	userRow struct {
		seq      int
		user     user.User
		officer  *user.Officer // role-specific fields only; User is read from `user`
		resident *user.Resident
	}

	userTable struct {
		sync.RWMutex
		seq   int
		table map[string]*userRow
	}

	scanTable struct {
		sync.RWMutex
		table map[string]*patrol.Scan
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*userRow)},
		scan: &scanTable{table: make(map[string]*patrol.Scan)},
	}
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*userRow)
	db.user.Unlock()

	db.scan.Lock()
	db.scan.table = make(map[string]*patrol.Scan)
	db.scan.Unlock()
}
