// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package models

import "errors"

// ErrNotFound is returned by store lookups when no row matches. Callers
// that treat absence as a normal outcome check for it with errors.Is
// instead of inspecting driver-specific errors.
var ErrNotFound = errors.New("not found")
