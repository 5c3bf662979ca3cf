// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/parley-dev/parley/internal/store"
)

// DBName is the database file created inside the data directory.
const DBName = "parley.db"

func init() {
	store.RegisterBackend("sqlite", openDataDir)
}

func openDataDir(dataDir string) (store.Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, store.DatabaseError(err, "creating data directory %s", dataDir)
	}
	return Open(filepath.Join(dataDir, DBName))
}
