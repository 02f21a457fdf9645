// Package iddb persistently stores derived hidden service identity records.
package iddb

import (
	"path"

	"go.etcd.io/bbolt"
)

type DB struct {
	*bbolt.DB
}

// Open opens or creates the identity database inside dataDir.
func Open(dataDir string) (*DB, error) {
	db, err := bbolt.Open(path.Join(dataDir, "onionid.db"), 0600, nil)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
