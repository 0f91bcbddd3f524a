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

package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theojepsen/nuevomatch/pkg/log"
	"github.com/theojepsen/nuevomatch/pkg/log/testlog"
)

func TestLevelFromStringRoundTrip(t *testing.T) {
	cases := map[string]log.Level{
		"debug": log.DebugLevel,
		"INFO":  log.InfoLevel,
		"error": log.ErrorLevel,
		"crit":  log.ErrorLevel,
	}
	for in, want := range cases {
		lvl, err := log.LevelFromString(in)
		require.NoError(t, err)
		assert.Equal(t, want, lvl)
	}
}

func TestLevelFromStringRejectsUnknown(t *testing.T) {
	_, err := log.LevelFromString("not-a-level")
	assert.Error(t, err)
}

func TestRootIsNeverNil(t *testing.T) {
	assert.NotNil(t, log.Root())
}

func TestFromCtxFallsBackToRoot(t *testing.T) {
	l := log.FromCtx(context.Background())
	assert.NotNil(t, l)
}

func TestWithLabelsAttachesLoggerToContext(t *testing.T) {
	ctx, l := log.WithLabels(context.Background(), "component", "test")
	assert.NotNil(t, l)
	assert.Same(t, l, log.FromCtx(ctx))
}

func TestCtxWithPanicsOnNilContext(t *testing.T) {
	assert.Panics(t, func() {
		//lint:ignore SA1012 exercising the documented panic on nil context
		log.CtxWith(nil, testlog.New())
	})
}

func TestSetupSwitchesRoot(t *testing.T) {
	original := log.Root()
	defer log.SetRoot(original)

	var cfg log.Config
	cfg.Console.Level = "debug"
	require.NoError(t, log.Setup(cfg))
	assert.NotNil(t, log.Root())
}
