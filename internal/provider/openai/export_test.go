// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package openai

// BuildParams exposes buildParams for white-box testing.
var BuildParams = buildParams
