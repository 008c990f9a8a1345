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

package prefixstate

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"l3/decision/model"
)

func TestUpdateThenDeleteLeavesStoreEmpty(t *testing.T) {
	s := New()
	prefix := netip.MustParsePrefix("10.1.1.1/32")
	key := model.PrefixKey{Node: "1", Prefix: prefix, Area: model.DefaultArea}
	entry := model.PrefixEntry{Prefix: prefix, Type: model.PrefixTypeConfig}

	changed := s.UpdatePrefix(key, entry)
	require.Len(t, changed, 1)
	require.Contains(t, changed, prefix)
	require.Len(t, s.Advertisers(prefix), 1)

	changedAgain := s.UpdatePrefix(key, entry)
	require.Empty(t, changedAgain, "idempotent re-advertisement must not report a change")

	changed = s.DeletePrefix(key)
	require.Len(t, changed, 1)
	require.Empty(t, s.Advertisers(prefix))
	require.Empty(t, s.Prefixes())

	require.Empty(t, s.DeletePrefix(key), "repeated withdrawal is idempotent")
}

func TestGetReceivedRoutesFiltered(t *testing.T) {
	s := New()
	p1 := netip.MustParsePrefix("10.1.1.1/32")
	p2 := netip.MustParsePrefix("10.1.1.2/32")
	s.UpdatePrefix(model.PrefixKey{Node: "1", Prefix: p1, Area: "A"}, model.PrefixEntry{Prefix: p1})
	s.UpdatePrefix(model.PrefixKey{Node: "2", Prefix: p2, Area: "B"}, model.PrefixEntry{Prefix: p2})

	node := model.NodeName("1")
	rows := s.GetReceivedRoutesFiltered(Filter{Node: &node})
	require.Len(t, rows, 1)
	require.Equal(t, p1, rows[0].Prefix)
}
