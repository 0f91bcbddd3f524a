// Copyright 2025 SCION Association
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package classifier

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/theojepsen/nuevomatch/pkg/log"
)

// pinCurrentGoroutine locks the calling goroutine to its current OS thread
// and restricts that thread to a single CPU, the way the reference
// PipelineThread constructor pins its worker thread with pthread_setaffinity_np.
// A negative core disables pinning. Failures are logged and otherwise
// ignored: an unpinned worker is slower, not incorrect.
func pinCurrentGoroutine(core int) {
	if core < 0 {
		return
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Root().New("component", "classifier").Error("failed to set CPU affinity", "core", core, "err", err)
	}
}
