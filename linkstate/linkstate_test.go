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

/* linkstate_test
   Covers:
   1) idempotent re-application of the same AdjacencyDatabase.
   2) bidirectionality gating on usable links.
   3) hard/soft drain effects on the per-viewer directed graph.
   4) propagation-time telemetry skip-on-zero-timestamp behavior.
*/
package linkstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"l3/decision/model"
)

func adj(other model.NodeName, localIf, remoteIf string, metric uint32) model.Adjacency {
	return model.Adjacency{
		OtherNodeName: other,
		LocalIfName:   localIf,
		RemoteIfName:  remoteIf,
		Metric:        metric,
	}
}

func TestUpdateAdjacencyDatabaseIdempotent(t *testing.T) {
	s := New(model.DefaultArea)
	db1 := model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "eth0", "eth0", 10)}}
	db2 := model.AdjacencyDatabase{ThisNodeName: "2", Adjacencies: []model.Adjacency{adj("1", "eth0", "eth0", 10)}}

	c1 := s.UpdateAdjacencyDatabase(db1, false)
	require.True(t, c1.NodeLabelChanged) // newly appeared
	c2 := s.UpdateAdjacencyDatabase(db2, false)
	require.True(t, c2.TopologyChanged) // link becomes bidirectionally usable

	// Re-applying the same update must be a no-op change report.
	c2Again := s.UpdateAdjacencyDatabase(db2, false)
	require.False(t, c2Again.TopologyChanged)
	require.False(t, c2Again.LinkAttributesChanged)
	require.False(t, c2Again.NodeLabelChanged)
}

func TestBidirectionalityRequired(t *testing.T) {
	s := New(model.DefaultArea)
	db1 := model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "eth0", "eth0", 10)}}
	s.UpdateAdjacencyDatabase(db1, false)

	require.False(t, s.IsBidirectional("1", "2"))
	edges := s.EdgesForViewer("1", "1")
	require.Empty(t, edges, "one-sided adjacency must not contribute an edge")
}

func TestHardDrainExcludesTransitNotOrigination(t *testing.T) {
	s := New(model.DefaultArea)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "e1", "e1", 10)}}, false)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{
		ThisNodeName: "2",
		Adjacencies:  []model.Adjacency{adj("1", "e1", "e1", 10), adj("3", "e2", "e1", 10)},
		IsOverloaded: true,
	}, false)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "3", Adjacencies: []model.Adjacency{adj("2", "e1", "e2", 10)}}, false)

	// Viewer 1 reaches 2 directly, but not 3 (2 is hard-drained, excluded as transit).
	edgesFrom2ForViewer1 := s.EdgesForViewer("2", "1")
	require.Empty(t, edgesFrom2ForViewer1)

	// Viewer 2 (itself) still walks its own outgoing edges normally.
	edgesFrom2ForViewer2 := s.EdgesForViewer("2", "2")
	require.Len(t, edgesFrom2ForViewer2, 2)
}

func TestSoftDrainAddsToArrivingEdge(t *testing.T) {
	s := New(model.DefaultArea)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "e1", "e1", 10)}}, false)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{
		ThisNodeName:        "2",
		Adjacencies:         []model.Adjacency{adj("1", "e1", "e1", 10)},
		NodeMetricIncrement: 100,
	}, false)

	edges := s.EdgesForViewer("1", "1")
	require.Len(t, edges, 1)
	require.EqualValues(t, 110, edges[0].Metric)
}

func TestPropagationTelemetrySkipsZeroTimestamp(t *testing.T) {
	tel := RecordTransition(time.Now(), model.LinkStatus{})
	require.True(t, tel.Skip)

	past := time.Now().Add(-5 * time.Second)
	tel2 := RecordTransition(time.Now(), model.LinkStatus{Up: true, Timestamp: past})
	require.False(t, tel2.Skip)
	require.True(t, tel2.Up)
	require.Greater(t, tel2.Duration, time.Duration(0))
}

func TestChangeTransitionsCarriesAttachedStatusOnUsabilityFlip(t *testing.T) {
	s := New(model.DefaultArea)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "e1", "e1", 10)}}, false)

	up := time.Now().Add(-2 * time.Second)
	c := s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{
		ThisNodeName: "2",
		Adjacencies:  []model.Adjacency{adj("1", "e1", "e1", 10)},
		LinkStatuses: map[string]model.LinkStatus{
			model.AdjKey("1", "e1"): {Up: true, Timestamp: up},
		},
	}, false)

	require.True(t, c.TopologyChanged)
	require.Len(t, c.Transitions, 1)
	require.True(t, c.Transitions[0].Up)
	require.Equal(t, up, c.Transitions[0].Timestamp)
}

func TestChangeTransitionsEmptyWithoutAttachedStatus(t *testing.T) {
	s := New(model.DefaultArea)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{adj("2", "e1", "e1", 10)}}, false)
	c := s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "2", Adjacencies: []model.Adjacency{adj("1", "e1", "e1", 10)}}, false)

	require.True(t, c.TopologyChanged)
	require.Empty(t, c.Transitions, "no LinkStatuses entry attached means nothing to report")
}

func TestAdjacencyCountsPartialAndComplete(t *testing.T) {
	s := New(model.DefaultArea)
	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "1", Adjacencies: []model.Adjacency{
		adj("2", "e1", "e1", 10), adj("3", "e2", "e1", 10),
	}}, false)

	complete, partial := s.AdjacencyCounts()
	require.Equal(t, 0, complete)
	require.Equal(t, 2, partial, "neither node 2 nor node 3 has advertised its side yet")

	s.UpdateAdjacencyDatabase(model.AdjacencyDatabase{ThisNodeName: "2", Adjacencies: []model.Adjacency{adj("1", "e1", "e1", 10)}}, false)
	complete, partial = s.AdjacencyCounts()
	require.Equal(t, 2, complete, "both halves of 1<->2 now have a counterpart")
	require.Equal(t, 1, partial, "1->3 still lacks its counterpart")
}
