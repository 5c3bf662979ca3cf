// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

//go:build windows

package config

import "io/fs"

// InsecurePermissions always reports false on Windows, which uses ACLs
// rather than mode bits.
func InsecurePermissions(path string) (bool, fs.FileMode) {
	return false, 0
}

// WarnInsecurePermissions is a no-op on Windows.
func WarnInsecurePermissions(path string) {}
