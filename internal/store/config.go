// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package store

// StorageConfig controls which backend Open uses.
type StorageConfig struct {
	Backend string // "sqlite" is the only backend for now.
	DataDir string
}
