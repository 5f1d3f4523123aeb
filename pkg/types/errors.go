// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// ErrInvalidInput wraps validation failures of caller-supplied values
// (empty titles, unknown phases, out-of-range ratings).
var ErrInvalidInput = errors.New("invalid input")
