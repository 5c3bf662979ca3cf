// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// readableByOthers reports group or world read bits.
const readableByOthers fs.FileMode = 0o044

// InsecurePermissions reports whether the file at path can be read by users
// other than its owner. Missing files are not insecure.
func InsecurePermissions(path string) (bool, fs.FileMode) {
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat file for permission check", "path", path, "error", err)
		return false, 0
	}
	perm := info.Mode().Perm()
	return perm&readableByOthers != 0, perm
}

// WarnInsecurePermissions logs a warning when a file holding secrets (the
// config file or the token file) is readable by group or others.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}

	if bad, mode := InsecurePermissions(path); bad {
		slog.Warn("file has insecure permissions; credentials may be exposed to other users",
			"path", path,
			"mode", mode,
			"recommended", "0600",
		)
	}
}
