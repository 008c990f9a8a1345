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

// Package decision implements the orchestrator: a single-threaded event
// loop that debounces bursts of link-state/prefix/static-route/peer
// input, drives SpfSolver, applies the RIB policy, and publishes route
// deltas. The loop shape is the cooperative "select over input queues and
// timers" style the rest of this codebase uses for its server goroutines.
package decision

import (
	"log/slog"
	"net/netip"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"l3/decision/counters"
	"l3/decision/linkstate"
	"l3/decision/model"
	"l3/decision/prefixstate"
	"l3/decision/spf"
)

// InitState is the per-instance gate described in §4.5.
type InitState int

const (
	WaitingPeers InitState = iota
	WaitingInitialSync
	WaitingAdjacencies
	Ready
)

func (s InitState) String() string {
	switch s {
	case WaitingPeers:
		return "WaitingPeers"
	case WaitingInitialSync:
		return "WaitingInitialSync"
	case WaitingAdjacencies:
		return "WaitingAdjacencies"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// Config bundles the solver configuration plus the orchestrator's own
// debounce/save timings.
type Config struct {
	Viewer model.NodeName
	Areas  []model.Area

	Solver spf.Config

	DebounceMin time.Duration
	DebounceMax time.Duration

	PolicySaveMin time.Duration
	PolicySaveMax time.Duration

	PolicyFilePath string
}

// PrefixRecord is a single KvStore prefix publication, the v2
// `prefix:<node>:<area>:<prefix>` record from §6.
type PrefixRecord struct {
	Node     model.NodeName
	Area     model.Area
	Prefix   netip.Prefix
	Entry    model.PrefixEntry
	Withdraw bool
}

// KvPublication is one batched KvStore-like delivery for a single area.
type KvPublication struct {
	Area         model.Area
	AdjDbs       []model.AdjacencyDatabase
	Prefixes     []PrefixRecord
	ExpiredNodes []model.NodeName // adj:<node> keys that expired
	InitialSync  bool             // initial-sync sentinel for this area
	AdjDbSynced  bool             // adjacency-DB-synced sentinel for this area
}

// StaticRouteUpdate replaces all prior static routes of Type.
type StaticRouteUpdate struct {
	Type    model.PrefixType
	Entries []StaticRouteEntry
}

// StaticRouteEntry is one config-originated or VIP-originated route.
type StaticRouteEntry struct {
	Prefix   netip.Prefix
	Entry    model.PrefixEntry
	NextHops []model.NextHop
	Drop     bool
}

// PeerEvent adds/removes expected peers for an area, gating Ready.
type PeerEvent struct {
	Area   model.Area
	Add    []model.NodeName
	Remove []model.NodeName
}

// DecisionRouteUpdate is the egress delta described in §4.4.
type DecisionRouteUpdate struct {
	UnicastRoutesToUpdate map[netip.Prefix]model.RibUnicastEntry
	UnicastRoutesToDelete []netip.Prefix
	MplsRoutesToUpdate    map[uint32]model.RibMplsEntry
	MplsRoutesToDelete    []uint32
	PerfEvents            []model.PerfEvent
}

func (u DecisionRouteUpdate) Empty() bool {
	return len(u.UnicastRoutesToUpdate) == 0 && len(u.UnicastRoutesToDelete) == 0 &&
		len(u.MplsRoutesToUpdate) == 0 && len(u.MplsRoutesToDelete) == 0
}

// pendingUpdates is the change-classification accumulator from §4.4.
type pendingUpdates struct {
	needsFullRebuild bool
	prefixes         map[netip.Prefix]struct{}
	perfEvents       []model.PerfEvent
}

func newPendingUpdates() *pendingUpdates {
	return &pendingUpdates{prefixes: make(map[netip.Prefix]struct{})}
}

func (p *pendingUpdates) reset() {
	p.needsFullRebuild = false
	p.prefixes = make(map[netip.Prefix]struct{})
	p.perfEvents = nil
}

func (p *pendingUpdates) addPrefixes(prefixes map[netip.Prefix]struct{}) {
	for pfx := range prefixes {
		p.prefixes[pfx] = struct{}{}
	}
}

func (p *pendingUpdates) markFullRebuild() {
	p.needsFullRebuild = true
}

func (p *pendingUpdates) appendPerfEvent(name string, at time.Time) {
	p.perfEvents = append(p.perfEvents, model.PerfEvent{Name: name, Timestamp: at})
}

func (p *pendingUpdates) any() bool {
	return p.needsFullRebuild || len(p.prefixes) > 0
}

// Decision is a single viewer's orchestrator instance.
type Decision struct {
	cfg      Config
	logger   *slog.Logger
	counters *counters.Set

	areas     map[model.Area]*linkstate.Store
	prefixes  *prefixstate.Store
	solver    *spf.Solver
	firstFull bool // true until the first full Compute has run

	// dupLabelTotal is the last observed sum of every area's cumulative
	// linkstate.Store.DuplicateLabelCounter, so runBatch can report only the
	// delta to counters.DuplicateNodeLabel on each full rebuild.
	dupLabelTotal int

	initState     InitState
	expectedPeer  map[model.Area]map[model.NodeName]struct{}
	peerEventSeen map[model.Area]bool
	seenAdj       map[model.Area]map[model.NodeName]struct{}
	syncedArea    map[model.Area]bool

	staticRoutes map[model.PrefixType][]StaticRouteEntry

	pending *pendingUpdates

	policy *policyState

	mu      sync.RWMutex
	lastRib *model.Rib

	// Sink receives every published route delta; the downstream FIB
	// programmer is out of scope, so this is the seam it would attach to.
	Sink func(DecisionRouteUpdate)

	kvCh     chan KvPublication
	staticCh chan StaticRouteUpdate
	peerCh   chan PeerEvent
	policyCh chan policyRequest
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates an un-started Decision instance. Call Run in its own
// goroutine to start the event loop.
func New(cfg Config, logger *slog.Logger) *Decision {
	areas := make(map[model.Area]*linkstate.Store, len(cfg.Areas))
	for _, a := range cfg.Areas {
		areas[a] = linkstate.New(a)
	}
	expected := make(map[model.Area]map[model.NodeName]struct{}, len(cfg.Areas))
	seen := make(map[model.Area]map[model.NodeName]struct{}, len(cfg.Areas))
	synced := make(map[model.Area]bool, len(cfg.Areas))
	peerEventSeen := make(map[model.Area]bool, len(cfg.Areas))
	for _, a := range cfg.Areas {
		expected[a] = make(map[model.NodeName]struct{})
		seen[a] = make(map[model.NodeName]struct{})
	}

	ctr := counters.New(uuid.NewString())
	solver := spf.NewSolver(cfg.Viewer, cfg.Solver)
	solver.Counters = ctr

	d := &Decision{
		cfg:          cfg,
		logger:       logger,
		counters:     ctr,
		areas:        areas,
		prefixes:     prefixstate.New(),
		solver:       solver,
		firstFull:    true,
		initState:    WaitingPeers,
		expectedPeer:  expected,
		peerEventSeen: peerEventSeen,
		seenAdj:       seen,
		syncedArea:    synced,
		staticRoutes: make(map[model.PrefixType][]StaticRouteEntry),
		pending:      newPendingUpdates(),
		policy:       newPolicyState(),
		lastRib:      model.NewRib(),
		kvCh:         make(chan KvPublication, 64),
		staticCh:     make(chan StaticRouteUpdate, 16),
		peerCh:       make(chan PeerEvent, 16),
		policyCh:     make(chan policyRequest),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	if logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Publish* / Submit* are the four ingress streams from outside the loop.
func (d *Decision) PublishKv(p KvPublication)            { d.kvCh <- p }
func (d *Decision) SubmitStaticRoutes(u StaticRouteUpdate) { d.staticCh <- u }
func (d *Decision) SubmitPeerEvent(e PeerEvent)           { d.peerCh <- e }

// Stop requests an orderly shutdown; it returns once the loop has drained.
func (d *Decision) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

// Run is the cooperative event loop described in §5/§9: select over the
// four input queues and the debounce/policy-save timer pairs. It returns
// when Stop is called or every input channel is closed.
func (d *Decision) Run() {
	defer close(d.doneCh)

	go d.policy.cache.Start()
	defer d.policy.cache.Stop()

	var debounceMin, debounceMax *time.Timer
	var saveMin, saveMax *time.Timer
	defer stopTimer(debounceMin)
	defer stopTimer(debounceMax)
	defer stopTimer(saveMin)
	defer stopTimer(saveMax)

	armDebounce := func() {
		if debounceMin == nil {
			debounceMin = time.NewTimer(d.cfg.DebounceMin)
		} else {
			debounceMin.Reset(d.cfg.DebounceMin)
		}
		if debounceMax == nil {
			debounceMax = time.NewTimer(d.cfg.DebounceMax)
		}
	}
	fireDebounce := func() {
		stopTimer(debounceMin)
		stopTimer(debounceMax)
		debounceMin, debounceMax = nil, nil
		d.runBatch(time.Now())
	}
	armSave := func() {
		if saveMin == nil {
			saveMin = time.NewTimer(d.cfg.PolicySaveMin)
		} else {
			saveMin.Reset(d.cfg.PolicySaveMin)
		}
		if saveMax == nil {
			saveMax = time.NewTimer(d.cfg.PolicySaveMax)
		}
	}
	fireSave := func() {
		stopTimer(saveMin)
		stopTimer(saveMax)
		saveMin, saveMax = nil, nil
		d.savePolicy()
	}
	defer func() {
		if d.policy.dirty {
			d.savePolicy()
		}
	}()

	for {
		if d.kvCh == nil && d.staticCh == nil && d.peerCh == nil && debounceMin == nil && debounceMax == nil {
			return
		}
		var minC, maxC, saveMinC, saveMaxC <-chan time.Time
		if debounceMin != nil {
			minC = debounceMin.C
		}
		if debounceMax != nil {
			maxC = debounceMax.C
		}
		if saveMin != nil {
			saveMinC = saveMin.C
		}
		if saveMax != nil {
			saveMaxC = saveMax.C
		}

		select {
		case pub, ok := <-d.kvCh:
			if !ok {
				d.kvCh = nil
				continue
			}
			if d.handleKvPublication(pub) {
				armDebounce()
			}
		case su, ok := <-d.staticCh:
			if !ok {
				d.staticCh = nil
				continue
			}
			d.handleStaticRoutes(su)
			armDebounce()
		case pe, ok := <-d.peerCh:
			if !ok {
				d.peerCh = nil
				continue
			}
			d.handlePeerEvent(pe)
		case req := <-d.policyCh:
			d.handlePolicyRequest(req)
			if d.policy.dirty {
				armSave()
			}
		case <-minC:
			fireDebounce()
		case <-maxC:
			fireDebounce()
		case <-saveMinC:
			fireSave()
		case <-saveMaxC:
			fireSave()
		case <-d.stopCh:
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// handleKvPublication applies adjacency/prefix records for one area and
// folds the resulting change classification into the pending-updates
// aggregator. It returns whether anything was queued for debounce.
func (d *Decision) handleKvPublication(pub KvPublication) bool {
	ls, ok := d.areas[pub.Area]
	if !ok {
		return false
	}
	queued := false

	for _, db := range pub.AdjDbs {
		change := ls.UpdateAdjacencyDatabase(db, pub.InitialSync)
		d.pending.appendPerfEvent("DECISION_RECEIVED", time.Now())
		if !pub.InitialSync {
			d.recordPropagationTelemetry(change.Transitions)
		}
		if change.TopologyChanged || change.NodeLabelChanged {
			d.pending.markFullRebuild()
			queued = true
		} else if change.LinkAttributesChanged && db.ThisNodeName == d.cfg.Viewer {
			// Open Question (b): a link-attribute-only change only forces a
			// full rebuild when it touches the viewer's own outgoing edges.
			d.pending.markFullRebuild()
			queued = true
		}
		d.seenAdj[pub.Area][db.ThisNodeName] = struct{}{}
	}
	for _, node := range pub.ExpiredNodes {
		ls.RemoveNode(node)
		d.pending.markFullRebuild()
		queued = true
	}

	for _, rec := range pub.Prefixes {
		if rec.Node == d.cfg.Viewer {
			// Self-redistribution suppression: the viewer already knows its
			// own originations via the static-route stream.
			continue
		}
		key := model.PrefixKey{Node: rec.Node, Prefix: rec.Prefix, Area: rec.Area}
		var changed map[netip.Prefix]struct{}
		if rec.Withdraw {
			changed = d.prefixes.DeletePrefix(key)
		} else {
			changed = d.prefixes.UpdatePrefix(key, rec.Entry)
		}
		if len(changed) > 0 {
			d.pending.addPrefixes(changed)
			queued = true
		}
	}

	if pub.InitialSync {
		d.syncedArea[pub.Area] = true
	}
	if pub.AdjDbSynced {
		for peer := range d.expectedPeer[pub.Area] {
			d.seenAdj[pub.Area][peer] = struct{}{}
		}
	}
	d.advanceInitState()
	return queued
}

// recordPropagationTelemetry converts link up/down status records observed
// on a non-initial update into the §4.1 propagation-time histograms.
func (d *Decision) recordPropagationTelemetry(transitions []model.LinkStatus) {
	now := time.Now()
	for _, status := range transitions {
		tel := linkstate.RecordTransition(now, status)
		if tel.Skip {
			continue
		}
		ms := float64(tel.Duration.Milliseconds())
		if tel.Up {
			d.counters.LinkUpPropagationMs.Add(ms)
		} else {
			d.counters.LinkDownPropagationMs.Add(ms)
		}
	}
}

func (d *Decision) handleStaticRoutes(u StaticRouteUpdate) {
	d.staticRoutes[u.Type] = u.Entries
	d.pending.markFullRebuild()
}

func (d *Decision) handlePeerEvent(e PeerEvent) {
	set := d.expectedPeer[e.Area]
	if set == nil {
		set = make(map[model.NodeName]struct{})
		d.expectedPeer[e.Area] = set
	}
	for _, n := range e.Add {
		set[n] = struct{}{}
	}
	for _, n := range e.Remove {
		delete(set, n)
	}
	d.peerEventSeen[e.Area] = true
	d.advanceInitState()
}

// advanceInitState runs the §4.5 gate: WaitingPeers -> WaitingInitialSync
// -> WaitingAdjacencies -> Ready. Every configured area must have received
// at least one peer event (even one naming zero peers) before the gate
// leaves WaitingPeers, so a freshly constructed instance that has not yet
// heard from peer-membership doesn't fall straight through.
func (d *Decision) advanceInitState() {
	if d.initState == Ready {
		return
	}
	if d.initState == WaitingPeers {
		for area := range d.expectedPeer {
			if !d.peerEventSeen[area] {
				return
			}
		}
		d.initState = WaitingInitialSync
	}
	if d.initState == WaitingInitialSync {
		for area := range d.expectedPeer {
			if !d.syncedArea[area] {
				return
			}
		}
		d.initState = WaitingAdjacencies
	}
	if d.initState == WaitingAdjacencies {
		for area, peers := range d.expectedPeer {
			seen := d.seenAdj[area]
			for peer := range peers {
				if _, ok := seen[peer]; !ok {
					return
				}
			}
		}
		d.initState = Ready
		d.pending.markFullRebuild()
	}
}

// runBatch is invoked when the debouncer fires: it runs the solver (full
// or partial), applies the RIB policy, diffs against the last published
// RIB, and publishes the delta.
func (d *Decision) runBatch(now time.Time) {
	if d.initState != Ready {
		d.pending.reset()
		return
	}
	pending := d.pending
	d.pending = newPendingUpdates()

	var rib *model.Rib
	if pending.needsFullRebuild || d.firstFull {
		rib = d.solver.Compute(d.areas, d.prefixes)
		d.applyStaticRoutes(rib)
		d.counters.SpfRuns.Add(1)
		d.recordDuplicateLabels()
		d.firstFull = false
	} else {
		d.mu.RLock()
		rib = cloneRib(d.lastRib)
		d.mu.RUnlock()
		changed := make([]netip.Prefix, 0, len(pending.prefixes))
		for pfx := range pending.prefixes {
			changed = append(changed, pfx)
		}
		sort.Slice(changed, func(i, j int) bool { return changed[i].String() < changed[j].String() })
		d.solver.ComputePrefixes(rib, changed, d.prefixes)
		d.applyStaticRoutes(rib)
	}
	d.counters.RouteBuildRuns.Add(1)
	d.refreshTopologyGauges()

	d.policy.apply(rib, now, d.counters)

	d.mu.Lock()
	prev := d.lastRib
	d.lastRib = rib
	d.mu.Unlock()

	pending.appendPerfEvent("DECISION_RECEIVED", now)
	update := diffRib(prev, rib, pending.perfEvents)
	if update.Empty() {
		return
	}
	if d.Sink != nil {
		d.Sink(update)
	}
}

// recordDuplicateLabels feeds the delta in every area's cumulative
// linkstate.Store.DuplicateLabelCounter (set during the just-completed
// Compute's buildMplsRoutes) into counters.DuplicateNodeLabel, since the
// per-area field itself never resets.
func (d *Decision) recordDuplicateLabels() {
	total := 0
	for _, ls := range d.areas {
		total += ls.DuplicateLabelCounter
	}
	if delta := total - d.dupLabelTotal; delta > 0 {
		d.counters.DuplicateNodeLabel.Add(float64(delta))
	}
	d.dupLabelTotal = total
}

// refreshTopologyGauges recomputes the §6 gauge counters from current
// LinkState/PrefixState size, called once per route-build run.
func (d *Decision) refreshTopologyGauges() {
	var nodes, complete, partial int
	for _, ls := range d.areas {
		nodes += len(ls.Nodes())
		c, p := ls.AdjacencyCounts()
		complete += c
		partial += p
	}
	d.counters.NumNodes.Set(int64(nodes))
	d.counters.NumPrefixes.Set(int64(len(d.prefixes.Prefixes())))
	d.counters.NumCompleteAdjacencies.Set(int64(complete))
	d.counters.NumPartialAdjacencies.Set(int64(partial))
}

// applyStaticRoutes overlays the current static-route set: for each type,
// the most recent delivery replaces prior routes of that type.
func (d *Decision) applyStaticRoutes(rib *model.Rib) {
	for _, entries := range d.staticRoutes {
		for _, e := range entries {
			rib.Unicast[e.Prefix] = model.RibUnicastEntry{
				Prefix:   e.Prefix,
				NextHops: e.NextHops,
				Best:     e.Entry,
				HasBest:  true,
				Drop:     e.Drop,
			}
		}
	}
}

// cloneRib snapshots r for either a partial-rebuild base or a query
// response. NextHops is deep-copied: policy.apply mutates NextHops[i].Weight
// in place, and without a fresh backing array here that write would land on
// the still-shared slice of an already-published snapshot, silently
// retracting a previously-reported weight and hiding the next legitimate
// policy delta from diffRib.
func cloneRib(r *model.Rib) *model.Rib {
	out := model.NewRib()
	for k, v := range r.Unicast {
		v.NextHops = append([]model.NextHop(nil), v.NextHops...)
		out.Unicast[k] = v
	}
	for k, v := range r.Mpls {
		v.NextHops = append([]model.NextHop(nil), v.NextHops...)
		out.Mpls[k] = v
	}
	for k, v := range r.BestRoutesCache {
		out.BestRoutesCache[k] = v
	}
	return out
}

// diffRib computes the route-update delta between two RIB snapshots.
func diffRib(prev, next *model.Rib, perfEvents []model.PerfEvent) DecisionRouteUpdate {
	update := DecisionRouteUpdate{
		UnicastRoutesToUpdate: make(map[netip.Prefix]model.RibUnicastEntry),
		MplsRoutesToUpdate:    make(map[uint32]model.RibMplsEntry),
		PerfEvents:            perfEvents,
	}
	for pfx, entry := range next.Unicast {
		if old, ok := prev.Unicast[pfx]; !ok || !sameUnicastEntry(old, entry) {
			update.UnicastRoutesToUpdate[pfx] = entry
		}
	}
	for pfx := range prev.Unicast {
		if _, ok := next.Unicast[pfx]; !ok {
			update.UnicastRoutesToDelete = append(update.UnicastRoutesToDelete, pfx)
		}
	}
	for label, entry := range next.Mpls {
		if old, ok := prev.Mpls[label]; !ok || !sameMplsEntry(old, entry) {
			update.MplsRoutesToUpdate[label] = entry
		}
	}
	for label := range prev.Mpls {
		if _, ok := next.Mpls[label]; !ok {
			update.MplsRoutesToDelete = append(update.MplsRoutesToDelete, label)
		}
	}
	sort.Slice(update.UnicastRoutesToDelete, func(i, j int) bool {
		return update.UnicastRoutesToDelete[i].String() < update.UnicastRoutesToDelete[j].String()
	})
	sort.Slice(update.MplsRoutesToDelete, func(i, j int) bool { return update.MplsRoutesToDelete[i] < update.MplsRoutesToDelete[j] })
	return update
}

func sameNextHops(a, b []model.NextHop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameNextHop(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameNextHop(a, b model.NextHop) bool {
	return a.Addr == b.Addr && a.IfName == b.IfName && a.Metric == b.Metric &&
		a.Area == b.Area && a.Neighbor == b.Neighbor && a.Weight == b.Weight &&
		a.Action.Kind == b.Action.Kind && a.Action.Label == b.Action.Label &&
		slices.Equal(a.Action.Labels, b.Action.Labels)
}

func sameUnicastEntry(a, b model.RibUnicastEntry) bool {
	return a.Prefix == b.Prefix && a.HasBest == b.HasBest && a.Drop == b.Drop &&
		a.LocalRouteConsideredAndLost == b.LocalRouteConsideredAndLost &&
		a.IgpCost == b.IgpCost && sameNextHops(a.NextHops, b.NextHops)
}

func sameMplsEntry(a, b model.RibMplsEntry) bool {
	return a.Label == b.Label && sameNextHops(a.NextHops, b.NextHops)
}

// Query API — synchronous snapshots, safe to call from any goroutine.

func (d *Decision) GetDecisionRouteDb() *model.Rib {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneRib(d.lastRib)
}

// GetRouteForPrefix returns the unicast route for exactly one prefix, the
// per-prefix counterpart to GetDecisionRouteDb.
func (d *Decision) GetRouteForPrefix(pfx netip.Prefix) (model.RibUnicastEntry, bool) {
	d.counters.GetRouteForPrefix.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.lastRib.Unicast[pfx]
	return entry, ok
}

func (d *Decision) GetReceivedRoutesFiltered(filter prefixstate.Filter) []prefixstate.ReceivedRoute {
	return d.prefixes.GetReceivedRoutesFiltered(filter)
}

func (d *Decision) GetBestRoutesCache() map[netip.Prefix]model.BestRoutesCacheEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[netip.Prefix]model.BestRoutesCacheEntry, len(d.lastRib.BestRoutesCache))
	for k, v := range d.lastRib.BestRoutesCache {
		out[k] = v
	}
	return out
}

// AdjacencyView is one row of GetDecisionAdjacenciesFiltered.
type AdjacencyView struct {
	Node model.NodeName
	Area model.Area
	Db   model.AdjacencyDatabase
}

func (d *Decision) GetDecisionAdjacenciesFiltered(area *model.Area, node *model.NodeName) []AdjacencyView {
	out := make([]AdjacencyView, 0)
	for a, ls := range d.areas {
		if area != nil && *area != a {
			continue
		}
		for _, n := range ls.Nodes() {
			if node != nil && *node != n {
				continue
			}
			db, ok := ls.GetAdjacencyDatabase(n)
			if !ok {
				continue
			}
			out = append(out, AdjacencyView{Node: n, Area: a, Db: db})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		return out[i].Node < out[j].Node
	})
	return out
}

func (d *Decision) InitState() InitState {
	return d.initState
}
