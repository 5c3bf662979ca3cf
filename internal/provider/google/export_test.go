// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package google

// Exposed for white-box testing.
var (
	BuildConfig     = buildConfig
	ConvertMessages = convertMessages
)
