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

package classifier

import "github.com/theojepsen/nuevomatch/pkg/private/serrors"

var (
	// ErrConfigInvalid is returned when a Config cannot be satisfied, e.g.
	// the remainder classifier is enabled but unset, or num_of_cores is 0.
	ErrConfigInvalid = serrors.New("classifier configuration invalid")

	// ErrRemainderLoadFailed is returned by Load when the remainder
	// classifier could not be loaded from the image and the single
	// rebuild-from-rules recovery attempt also failed.
	ErrRemainderLoadFailed = serrors.New("remainder classifier failed to load")

	// ErrNoValidSubsets is returned by Load when, after filtering, neither
	// any iSet nor a remainder classifier survived to do any work.
	ErrNoValidSubsets = serrors.New("classifier has no valid subsets")
)
