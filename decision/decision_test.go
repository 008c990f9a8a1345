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

package decision

import (
	"fmt"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"l3/decision/counters"
	"l3/decision/model"
	"l3/decision/spf"
)

var testCounterSeq int64

func testCounters() *counters.Set {
	id := atomic.AddInt64(&testCounterSeq, 1)
	return counters.New(fmt.Sprintf("test-%d", id))
}

func spfConfigV4() spf.Config {
	return spf.Config{V4Enabled: true}
}

func newTestDecision(t *testing.T) *Decision {
	t.Helper()
	cfg := Config{
		Viewer:      "1",
		Areas:       []model.Area{model.DefaultArea},
		Solver:      spfConfigV4(),
		DebounceMin: 10 * time.Millisecond,
		DebounceMax: 250 * time.Millisecond,
	}
	d := New(cfg, nil)
	return d
}

func chainDb(node model.NodeName, adjs ...model.Adjacency) model.AdjacencyDatabase {
	return model.AdjacencyDatabase{ThisNodeName: node, Adjacencies: adjs}
}

func adj(other model.NodeName, localIf, remoteIf string, metric uint32) model.Adjacency {
	return model.Adjacency{OtherNodeName: other, LocalIfName: localIf, RemoteIfName: remoteIf, Metric: metric}
}

func TestInitStateAdvancesThroughGates(t *testing.T) {
	d := newTestDecision(t)
	require.Equal(t, WaitingPeers, d.initState)

	d.handlePeerEvent(PeerEvent{Area: model.DefaultArea, Add: []model.NodeName{"2"}})
	require.Equal(t, WaitingInitialSync, d.initState)

	d.handleKvPublication(KvPublication{Area: model.DefaultArea, InitialSync: true})
	require.Equal(t, WaitingAdjacencies, d.initState)

	d.handleKvPublication(KvPublication{Area: model.DefaultArea, AdjDbs: []model.AdjacencyDatabase{
		chainDb("1", adj("2", "e0", "e0", 10)),
	}})
	require.Equal(t, WaitingAdjacencies, d.initState, "viewer's own db doesn't satisfy the expected-peer set")

	d.handleKvPublication(KvPublication{Area: model.DefaultArea, AdjDbs: []model.AdjacencyDatabase{
		chainDb("2", adj("1", "e0", "e0", 10)),
	}})
	require.Equal(t, Ready, d.initState)
	require.True(t, d.pending.needsFullRebuild)
}

func TestRunBatchSuppressedBeforeReady(t *testing.T) {
	d := newTestDecision(t)
	var published []DecisionRouteUpdate
	d.Sink = func(u DecisionRouteUpdate) { published = append(published, u) }

	d.pending.markFullRebuild()
	d.runBatch(time.Now())
	require.Empty(t, published, "no RIB is published before the init gate opens")
}

func TestRunBatchPublishesOnFirstFullRebuild(t *testing.T) {
	d := newTestDecision(t)
	d.initState = Ready
	ls := d.areas[model.DefaultArea]
	ls.UpdateAdjacencyDatabase(chainDb("1", adj("2", "e0", "e0", 10)), false)
	ls.UpdateAdjacencyDatabase(chainDb("2", adj("1", "e0", "e0", 10)), false)

	p := netip.MustParsePrefix("10.0.0.9/32")
	d.prefixes.UpdatePrefix(model.PrefixKey{Node: "2", Prefix: p, Area: model.DefaultArea}, model.PrefixEntry{Prefix: p})

	var published []DecisionRouteUpdate
	d.Sink = func(u DecisionRouteUpdate) { published = append(published, u) }
	d.runBatch(time.Now())

	require.Len(t, published, 1)
	require.Contains(t, published[0].UnicastRoutesToUpdate, p)
}

func TestSelfRedistributionSuppressed(t *testing.T) {
	d := newTestDecision(t)
	p := netip.MustParsePrefix("10.0.0.10/32")
	queued := d.handleKvPublication(KvPublication{
		Area:     model.DefaultArea,
		Prefixes: []PrefixRecord{{Node: "1", Area: model.DefaultArea, Prefix: p, Entry: model.PrefixEntry{Prefix: p}}},
	})
	require.False(t, queued)
	require.Empty(t, d.prefixes.Advertisers(p))
}

func TestPolicySetGetClearLifecycle(t *testing.T) {
	d := newTestDecision(t)
	p := netip.MustParsePrefix("10.2.2.2/32")
	policy := &Policy{
		TTL: time.Hour,
		Statements: []Statement{{
			Matcher:   Matcher{Prefixes: []netip.Prefix{p}},
			SetWeight: map[model.NodeName]uint32{"2": 2},
		}},
	}

	reply := make(chan policyReply, 1)
	d.handlePolicyRequest(policyRequest{kind: cmdSet, policy: policy, reply: reply})
	require.NoError(t, (<-reply).err)

	getReply := make(chan policyReply, 1)
	d.handlePolicyRequest(policyRequest{kind: cmdGet, reply: getReply})
	got := <-getReply
	require.NoError(t, got.err)
	require.Same(t, policy, got.policy)

	clearReply := make(chan policyReply, 1)
	d.handlePolicyRequest(policyRequest{kind: cmdClear, reply: clearReply})
	require.NoError(t, (<-clearReply).err)

	afterClear := make(chan policyReply, 1)
	d.handlePolicyRequest(policyRequest{kind: cmdGet, reply: afterClear})
	require.ErrorIs(t, (<-afterClear).err, ErrPolicyAbsent)
}

func TestPolicyPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Viewer:         "1",
		Areas:          []model.Area{model.DefaultArea},
		Solver:         spfConfigV4(),
		DebounceMin:    10 * time.Millisecond,
		DebounceMax:    250 * time.Millisecond,
		PolicyFilePath: dir + "/policy.yaml",
	}
	d := New(cfg, nil)
	go d.Run()
	defer d.Stop()

	p := netip.MustParsePrefix("10.9.9.9/32")
	require.NoError(t, d.SetPolicy(&Policy{
		TTL:        time.Hour,
		Statements: []Statement{{Matcher: Matcher{Prefixes: []netip.Prefix{p}}, SetWeight: map[model.NodeName]uint32{"2": 5}}},
	}))
	require.NoError(t, d.PersistPolicyNow())

	reloaded := New(cfg, nil)
	reloaded.LoadPolicyFile()
	got, err := reloaded.policy.getActive(time.Now())
	require.NoError(t, err)
	require.Equal(t, p, got.Statements[0].Matcher.Prefixes[0])
	require.EqualValues(t, 5, got.Statements[0].SetWeight["2"])
}

func TestPolicyRejectsEmptyStatements(t *testing.T) {
	d := newTestDecision(t)
	reply := make(chan policyReply, 1)
	d.handlePolicyRequest(policyRequest{kind: cmdSet, policy: &Policy{TTL: time.Second}, reply: reply})
	require.ErrorIs(t, (<-reply).err, ErrPolicyInvalid)
}

func TestPolicyWeightOverrideAndInvalidatedRoutesCounter(t *testing.T) {
	p := netip.MustParsePrefix("10.2.2.2/32")
	rib := model.NewRib()
	rib.Unicast[p] = model.RibUnicastEntry{
		Prefix:   p,
		NextHops: []model.NextHop{{Neighbor: "2", Weight: 0}},
		Best:     model.PrefixEntry{Prefix: p},
		HasBest:  true,
	}

	s := newPolicyState()
	s.setActive(&Policy{
		TTL: time.Hour,
		Statements: []Statement{{
			Matcher:   Matcher{Prefixes: []netip.Prefix{p}},
			SetWeight: map[model.NodeName]uint32{"2": 2},
		}},
	}, time.Now())

	ctr := testCounters()
	s.apply(rib, time.Now(), ctr)
	require.EqualValues(t, 2, rib.Unicast[p].NextHops[0].Weight)

	s.setActive(&Policy{
		TTL: time.Hour,
		Statements: []Statement{{
			Matcher:   Matcher{Prefixes: []netip.Prefix{p}},
			SetWeight: map[model.NodeName]uint32{"2": 0},
		}},
	}, time.Now())
	s.apply(rib, time.Now(), ctr)
	require.EqualValues(t, 0, rib.Unicast[p].NextHops[0].Weight)
}

func TestPolicyInertAfterTTL(t *testing.T) {
	p := netip.MustParsePrefix("10.2.2.3/32")
	rib := model.NewRib()
	rib.Unicast[p] = model.RibUnicastEntry{Prefix: p, NextHops: []model.NextHop{{Neighbor: "2", Weight: 0}}}

	s := newPolicyState()
	s.setActive(&Policy{
		TTL:        time.Millisecond,
		Statements: []Statement{{Matcher: Matcher{Prefixes: []netip.Prefix{p}}, SetWeight: map[model.NodeName]uint32{"2": 9}}},
	}, time.Now().Add(-time.Hour))

	s.apply(rib, time.Now(), testCounters())
	require.EqualValues(t, 0, rib.Unicast[p].NextHops[0].Weight, "policy past its TTL is inert")
}

func TestDiffRibReportsUpdatesAndDeletes(t *testing.T) {
	p1 := netip.MustParsePrefix("10.0.0.1/32")
	p2 := netip.MustParsePrefix("10.0.0.2/32")
	prev := model.NewRib()
	prev.Unicast[p1] = model.RibUnicastEntry{Prefix: p1, IgpCost: 10}
	prev.Mpls[16001] = model.RibMplsEntry{Label: 16001}

	next := model.NewRib()
	next.Unicast[p1] = model.RibUnicastEntry{Prefix: p1, IgpCost: 20} // changed
	next.Unicast[p2] = model.RibUnicastEntry{Prefix: p2}              // new

	update := diffRib(prev, next, nil)
	require.Contains(t, update.UnicastRoutesToUpdate, p1)
	require.Contains(t, update.UnicastRoutesToUpdate, p2)
	require.Empty(t, update.UnicastRoutesToDelete)
	require.Contains(t, update.MplsRoutesToDelete, uint32(16001))
}

func TestRunBatchPopulatesGetRouteForPrefixAndGauges(t *testing.T) {
	d := newTestDecision(t)
	d.initState = Ready
	ls := d.areas[model.DefaultArea]
	ls.UpdateAdjacencyDatabase(chainDb("1", adj("2", "e0", "e0", 10)), false)
	ls.UpdateAdjacencyDatabase(chainDb("2", adj("1", "e0", "e0", 10)), false)

	p := netip.MustParsePrefix("10.0.0.20/32")
	d.prefixes.UpdatePrefix(model.PrefixKey{Node: "2", Prefix: p, Area: model.DefaultArea}, model.PrefixEntry{Prefix: p})

	d.runBatch(time.Now())

	entry, ok := d.GetRouteForPrefix(p)
	require.True(t, ok)
	require.Equal(t, p, entry.Prefix)

	_, ok = d.GetRouteForPrefix(netip.MustParsePrefix("10.255.255.255/32"))
	require.False(t, ok)

	require.EqualValues(t, 2, d.counters.NumNodes.Value())
	require.EqualValues(t, 1, d.counters.NumPrefixes.Value())
	require.EqualValues(t, 2, d.counters.NumCompleteAdjacencies.Value())
	require.EqualValues(t, 0, d.counters.NumPartialAdjacencies.Value())
}

func TestRecordDuplicateLabelsReportsOnlyTheDeltaAcrossRebuilds(t *testing.T) {
	d := newTestDecision(t)
	d.initState = Ready
	d.cfg.Solver.EnableSegmentLabels = true
	d.solver.Config.EnableSegmentLabels = true

	ls := d.areas[model.DefaultArea]
	ls.UpdateAdjacencyDatabase(model.AdjacencyDatabase{
		ThisNodeName: "1", HasNodeLabel: true, NodeLabel: 16001,
		Adjacencies: []model.Adjacency{adj("2", "e0", "e0", 10)},
	}, false)
	ls.UpdateAdjacencyDatabase(model.AdjacencyDatabase{
		ThisNodeName: "2", HasNodeLabel: true, NodeLabel: 16001,
		Adjacencies: []model.Adjacency{adj("1", "e0", "e0", 10)},
	}, false)

	d.pending.markFullRebuild()
	d.runBatch(time.Now())
	require.Equal(t, 1, ls.DuplicateLabelCounter)
	require.Equal(t, 1, d.dupLabelTotal)

	// The same conflict is re-detected on every full rebuild, so the
	// per-area field keeps climbing, but the delta reported each time
	// stays a clean +1 rather than re-reporting the whole cumulative sum.
	d.pending.markFullRebuild()
	d.runBatch(time.Now())
	require.Equal(t, 2, ls.DuplicateLabelCounter)
	require.Equal(t, 2, d.dupLabelTotal)
}

func TestHandleKvPublicationRecordsPropagationTelemetryOnNonInitialUpdate(t *testing.T) {
	d := newTestDecision(t)
	d.handleKvPublication(KvPublication{Area: model.DefaultArea, AdjDbs: []model.AdjacencyDatabase{
		chainDb("1", adj("2", "e0", "e0", 10)),
	}})

	past := time.Now().Add(-3 * time.Second)
	d.handleKvPublication(KvPublication{Area: model.DefaultArea, AdjDbs: []model.AdjacencyDatabase{
		{
			ThisNodeName: "2",
			Adjacencies:  []model.Adjacency{adj("1", "e0", "e0", 10)},
			LinkStatuses: map[string]model.LinkStatus{
				model.AdjKey("1", "e0"): {Up: true, Timestamp: past},
			},
		},
	}})

	// No assertion on the histogram's internal value (unexposed by the
	// metrics library); this confirms the wiring path runs without the
	// transition being silently dropped before reaching RecordTransition.
	require.True(t, d.areas[model.DefaultArea].IsBidirectional("1", "2"))
}

func TestRunBatchPartialRebuildPublishesPolicyWeightChangeOnUnchangedPrefix(t *testing.T) {
	d := newTestDecision(t)
	d.initState = Ready
	ls := d.areas[model.DefaultArea]
	ls.UpdateAdjacencyDatabase(chainDb("1", adj("2", "e0", "e0", 10)), false)
	ls.UpdateAdjacencyDatabase(chainDb("2", adj("1", "e0", "e0", 10)), false)

	p := netip.MustParsePrefix("10.0.0.30/32")
	d.prefixes.UpdatePrefix(model.PrefixKey{Node: "2", Prefix: p, Area: model.DefaultArea}, model.PrefixEntry{Prefix: p})

	d.pending.markFullRebuild()
	d.runBatch(time.Now())

	before := d.lastRib.Unicast[p]
	require.EqualValues(t, 0, before.NextHops[0].Weight)

	d.policy.setActive(&Policy{
		TTL: time.Hour,
		Statements: []Statement{{
			Matcher:   Matcher{Prefixes: []netip.Prefix{p}},
			SetWeight: map[model.NodeName]uint32{"2": 5},
		}},
	}, time.Now())

	var published []DecisionRouteUpdate
	d.Sink = func(u DecisionRouteUpdate) { published = append(published, u) }

	// Nothing queued in pending.prefixes: p is "unchanged" from the
	// solver's point of view, so this takes the cloneRib partial-rebuild
	// path rather than a full Compute. The policy's weight override must
	// still be visible in the published delta, and the prior snapshot's
	// NextHops must be left untouched.
	d.runBatch(time.Now())

	require.Len(t, published, 1)
	updated, ok := published[0].UnicastRoutesToUpdate[p]
	require.True(t, ok, "policy-only weight change on an unchanged prefix must still publish")
	require.EqualValues(t, 5, updated.NextHops[0].Weight)
	require.EqualValues(t, 0, before.NextHops[0].Weight, "previously published snapshot must not be mutated in place")
}

func TestPendingUpdatesIdempotentAggregation(t *testing.T) {
	pu := newPendingUpdates()
	require.False(t, pu.any())
	pu.markFullRebuild()
	require.True(t, pu.any())
	pu.reset()
	require.False(t, pu.any())

	p := netip.MustParsePrefix("10.0.0.1/32")
	pu.addPrefixes(map[netip.Prefix]struct{}{p: {}})
	require.True(t, pu.any())
	require.Contains(t, pu.prefixes, p)
}
