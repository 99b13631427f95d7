// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor

import "errors"

// ErrClosed is returned by Engine methods called after Close.
var ErrClosed = errors.New("compositor: engine closed")
