//
//Copyright [2016] [SnapRoute Inc]
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//	 Unless required by applicable law or agreed to in writing, software
//	 distributed under the License is distributed on an "AS IS" BASIS,
//	 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//	 See the License for the specific language governing permissions and
//	 limitations under the License.
//

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"l3/decision/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "decisiond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, "viewer: node1\ndebounce_min_ms: 50\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, model.NodeName("node1"), cfg.Viewer)
	require.EqualValues(t, 50, cfg.DebounceMinMs)
	require.EqualValues(t, 2000, cfg.DebounceMaxMs, "unset fields keep the built-in default")
	require.Equal(t, []model.Area{model.DefaultArea}, cfg.Areas)
	require.True(t, cfg.Solver.V4Enabled, "nested default survives a file with no solver block")
}

func TestLoadRejectsMissingViewer(t *testing.T) {
	path := writeConfig(t, "areas: [\"0\"]\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvertedDebounceWindow(t *testing.T) {
	path := writeConfig(t, "viewer: node1\ndebounce_min_ms: 500\ndebounce_max_ms: 10\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestDurationConversions(t *testing.T) {
	cfg := Defaults()
	cfg.DebounceMinMs = 200
	cfg.DebounceMaxMs = 2000
	cfg.PolicySaveMinMs = 500
	cfg.PolicySaveMaxMs = 5000
	require.Equal(t, 200*time.Millisecond, cfg.DebounceMin())
	require.Equal(t, 2000*time.Millisecond, cfg.DebounceMax())
	require.Equal(t, 500*time.Millisecond, cfg.PolicySaveMin())
	require.Equal(t, 5000*time.Millisecond, cfg.PolicySaveMax())
}
