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

//go:build !classifier_profile

package classifier

import "time"

// processingMetricsEnabled mirrors the classifier_profile-tagged build:
// per-stage timing is compiled out entirely by default so the hot path
// never pays for a histogram observation it doesn't need.
const processingMetricsEnabled = false

func observeStage(stage string, start time.Time) {}
