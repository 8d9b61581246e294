// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import "golang.org/x/sys/unix"

// Prewarm touches every page of every backing buffer so first-touch page
// faults happen at startup instead of on the hot path, then attempts to
// lock those pages resident. Locking is best-effort: on platforms or under
// privilege levels where mlock is unavailable, the failure is returned to
// the caller to log but must never be treated as fatal, since correctness
// never depends on pages being resident.
func (p *Pool) Prewarm() error {
	const pageSize = 4096
	for _, buf := range p.backing {
		for i := 0; i < len(buf); i += pageSize {
			buf[i] = buf[i]
		}
	}

	var firstErr error
	for _, buf := range p.backing {
		if len(buf) == 0 {
			continue
		}
		if err := unix.Mlock(buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
