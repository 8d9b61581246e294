// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package affinity

import "errors"

// ErrUnsupported is returned on platforms with no CPU-affinity syscall
// wired. Callers must treat this as non-fatal, per spec.md §5.
var ErrUnsupported = errors.New("affinity: unsupported on this platform")

// Pin is a no-op outside Linux; it always reports ErrUnsupported.
func Pin(cpu int) error { return ErrUnsupported }
