// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package affinity pins the calling OS thread to a CPU core, best-effort.
// Go's runtime gives no portable way to express literal CPU affinity;
// this is the thin golang.org/x/sys/unix-based helper spec.md §5's
// "pinned OS threads per stage" requirement is implemented through.
// Failures are logged and ignored by the caller, never fatal: correctness
// never depends on affinity actually taking effect.
package affinity

import "golang.org/x/sys/unix"

// Pin locks the calling goroutine to its current OS thread (the caller
// must already have called runtime.LockOSThread) and sets that thread's
// CPU affinity to cpu.
func Pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
