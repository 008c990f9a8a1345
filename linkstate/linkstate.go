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
// _______  __       __________   ___      _______.____    __    ____  __  .___________.  ______  __    __
// |   ____||  |     |   ____\  \ /  /     /       |\   \  /  \  /   / |  | |           | /      ||  |  |  |
// |  |__   |  |     |  |__   \  V  /     |   (----` \   \/    \/   /  |  | `---|  |----`|  ,----'|  |__|  |
// |   __|  |  |     |   __|   >   <       \   \      \            /   |  |     |  |     |  |     |   __   |
// |  |     |  `----.|  |____ /  .  \  .----)   |      \    /\    /    |  |     |  |     |  `----.|  |  |  |
// |__|     |_______||_______/__/ \__\ |_______/        \__/  \__/     |__|     |__|      \______||__|  |__|
//

// Package linkstate maintains, for a single area, a bidirectional graph
// view derived from per-node AdjacencyDatabases and reports precisely what
// changed on each update.
package linkstate

import (
	"sort"
	"time"

	"l3/decision/model"
)

// halfEdgeKey identifies one directed half of a link as declared by its
// owning node: the neighbor it points at, and the local interface used to
// reach it. Parallel adjacencies to the same neighbor over different
// interfaces are distinct half-edges.
type halfEdgeKey struct {
	Other   model.NodeName
	LocalIf string
}

type nodeEntry struct {
	db   model.AdjacencyDatabase
	half map[halfEdgeKey]model.Adjacency
}

// linkSnapshot is what Store remembers about a usable link across updates,
// so that the next update can tell whether the usable-link set or its
// metric changed.
type linkSnapshot struct {
	usable bool
	metric uint32
}

// linkID canonically identifies the undirected link formed by node a's
// half-edge toward node b over a given interface pair. It is built from the
// perspective of whichever node is lexically smaller, so both endpoints
// derive the same id for the same link.
type linkID struct {
	NodeA model.NodeName
	IfA   string
	NodeB model.NodeName
	IfB   string
}

func makeLinkID(a model.NodeName, ifA string, b model.NodeName, ifB string) linkID {
	if a <= b {
		return linkID{a, ifA, b, ifB}
	}
	return linkID{b, ifB, a, ifA}
}

// Change reports the effect of a single updateAdjacencyDatabase call, per
// the three-way classification that drives Decision's full-vs-partial
// rebuild choice.
type Change struct {
	TopologyChanged      bool
	LinkAttributesChanged bool
	NodeLabelChanged     bool

	// Transitions carries the status record attached to db.LinkStatuses for
	// every half-edge whose usability flipped on this call, for the caller
	// to feed into RecordTransition. Empty on an idempotent re-application.
	Transitions []model.LinkStatus
}

func (c Change) Any() bool {
	return c.TopologyChanged || c.LinkAttributesChanged || c.NodeLabelChanged
}

// DirectedEdge is one outgoing, viewer-usable edge of the per-viewer
// directed metric graph that SpfSolver runs Dijkstra over.
type DirectedEdge struct {
	To     model.NodeName
	Metric uint32
	Adj    model.Adjacency // the from-node's adjacency record toward To
}

// Store is the LinkState for a single area.
type Store struct {
	Area  model.Area
	nodes map[model.NodeName]*nodeEntry
	links map[linkID]linkSnapshot

	// DuplicateLabelCounter is incremented whenever CreateAreaGraph-style
	// label resolution (performed by the spf package against this area)
	// finds two nodes sharing a node label. Exposed here because the
	// per-area bookkeeping naturally lives alongside the node-label view.
	DuplicateLabelCounter int
}

func New(area model.Area) *Store {
	return &Store{
		Area:  area,
		nodes: make(map[model.NodeName]*nodeEntry),
		links: make(map[linkID]linkSnapshot),
	}
}

func buildHalfEdges(db model.AdjacencyDatabase) map[halfEdgeKey]model.Adjacency {
	half := make(map[halfEdgeKey]model.Adjacency, len(db.Adjacencies))
	for _, adj := range db.Adjacencies {
		half[halfEdgeKey{Other: adj.OtherNodeName, LocalIf: adj.LocalIfName}] = adj
	}
	return half
}

// counterpart finds node `other`'s half-edge that matches the given
// adjacency, i.e. the other side of the same link.
func (s *Store) counterpart(self model.NodeName, adj model.Adjacency) (model.Adjacency, bool) {
	ne, ok := s.nodes[adj.OtherNodeName]
	if !ok {
		return model.Adjacency{}, false
	}
	other, ok := ne.half[halfEdgeKey{Other: self, LocalIf: adj.RemoteIfName}]
	return other, ok
}

// usableGeneric implements the Data Model §3 Link usability definition:
// both halves present, neither half overloaded, neither node overloaded.
// only-used-by is deliberately not evaluated here: it is viewer-dependent
// and applied later by EdgesForViewer / bidirectional visibility checks.
func (s *Store) usableGeneric(nodeA model.NodeName, adjAB model.Adjacency, adjBA model.Adjacency) bool {
	if adjAB.Overloaded || adjBA.Overloaded {
		return false
	}
	aEnt := s.nodes[nodeA]
	bEnt := s.nodes[adjAB.OtherNodeName]
	if aEnt == nil || bEnt == nil {
		return false
	}
	if aEnt.db.IsOverloaded || bEnt.db.IsOverloaded {
		return false
	}
	return true
}

func symmetricMaxMetric(adjAB, adjBA model.Adjacency) uint32 {
	if adjAB.Metric > adjBA.Metric {
		return adjAB.Metric
	}
	return adjBA.Metric
}

// UpdateAdjacencyDatabase applies a newly-received AdjacencyDatabase for
// db.ThisNodeName and reports what changed. isInitialSync is accepted for
// callers (the Decision-level gate cares about it) but does not alter the
// change classification itself.
func (s *Store) UpdateAdjacencyDatabase(db model.AdjacencyDatabase, isInitialSync bool) Change {
	node := db.ThisNodeName
	prev, existed := s.nodes[node]

	var change Change

	// node-label / appearance change
	switch {
	case !existed:
		change.NodeLabelChanged = true
	case prev.db.HasNodeLabel != db.HasNodeLabel || prev.db.NodeLabel != db.NodeLabel:
		change.NodeLabelChanged = true
	}

	// Node-level hard/soft drain changes affect every edge arriving at or
	// leaving this node, so they always count as a topology change unless
	// nothing about the node's edges actually differs (handled below via
	// the generic per-link diff, which already recomputes usability/metric
	// with the new drain state applied).
	var prevOverloaded, prevIncrement uint32
	var prevWasOverloaded bool
	if existed {
		prevWasOverloaded = prev.db.IsOverloaded
		prevIncrement = prev.db.NodeMetricIncrement
	}
	_ = prevOverloaded

	newHalf := buildHalfEdges(db)
	var oldHalf map[halfEdgeKey]model.Adjacency
	if existed {
		oldHalf = prev.half
	}

	// Register the node's new view before diffing neighbor-side links so
	// counterpart lookups see the fresh state for this node too.
	s.nodes[node] = &nodeEntry{db: model.CloneAdjacencyDatabase(db), half: newHalf}

	changedKeys := make(map[halfEdgeKey]struct{})
	for k, a := range newHalf {
		if b, ok := oldHalf[k]; !ok || !sameAdjacency(a, b) {
			changedKeys[k] = struct{}{}
		}
	}
	for k := range oldHalf {
		if _, ok := newHalf[k]; !ok {
			changedKeys[k] = struct{}{}
		}
	}
	if prevWasOverloaded != db.IsOverloaded || prevIncrement != db.NodeMetricIncrement {
		// every half-edge of this node is potentially affected
		for k := range newHalf {
			changedKeys[k] = struct{}{}
		}
		for k := range oldHalf {
			changedKeys[k] = struct{}{}
		}
	}

	for k := range changedKeys {
		newAdj, hasNew := newHalf[k]
		var counterpartAdj model.Adjacency
		var hasCounterpart bool
		if hasNew {
			counterpartAdj, hasCounterpart = s.counterpart(node, newAdj)
		} else if oldAdj, ok := oldHalf[k]; ok {
			counterpartAdj, hasCounterpart = s.counterpart(node, oldAdj)
		}

		id := makeLinkID(node, k.LocalIf, k.Other, k.LocalIf)
		if hasCounterpart {
			id = makeLinkID(node, k.LocalIf, k.Other, counterpartAdj.LocalIfName)
		}
		prevSnap, hadSnap := s.links[id]

		var newSnap linkSnapshot
		if hasNew && hasCounterpart {
			newSnap.usable = s.usableGeneric(node, newAdj, counterpartAdj)
			if newSnap.usable {
				newSnap.metric = symmetricMaxMetric(newAdj, counterpartAdj)
			}
		}

		switch {
		case !hadSnap && newSnap.usable:
			change.TopologyChanged = true
			change.Transitions = appendTransition(change.Transitions, db, k)
		case hadSnap && prevSnap.usable && !newSnap.usable:
			change.TopologyChanged = true
			change.Transitions = appendTransition(change.Transitions, db, k)
		case hadSnap && prevSnap.usable && newSnap.usable && prevSnap.metric != newSnap.metric:
			change.TopologyChanged = true
		case hadSnap && prevSnap.usable && newSnap.usable && prevSnap.metric == newSnap.metric:
			// same topology contribution; a next-hop/weight-only change on
			// this still-usable link is a link-attribute change.
			if hasNew {
				if oldAdj, ok := oldHalf[k]; ok && !sameNextHopAttrs(oldAdj, newAdj) {
					change.LinkAttributesChanged = true
				}
			}
		}

		if newSnap.usable {
			s.links[id] = newSnap
		} else if hadSnap {
			delete(s.links, id)
		}
	}

	return change
}

// appendTransition pulls the status record db's advertiser attached for
// this half-edge, if any, and appends it to transitions. The advertiser
// timestamps LinkStatuses itself (when it observed the transition); a
// missing entry means the advertiser didn't attach one, so there is
// nothing to report.
func appendTransition(transitions []model.LinkStatus, db model.AdjacencyDatabase, k halfEdgeKey) []model.LinkStatus {
	status, ok := db.LinkStatuses[model.AdjKey(k.Other, k.LocalIf)]
	if !ok {
		return transitions
	}
	return append(transitions, status)
}

func sameAdjacency(a, b model.Adjacency) bool {
	return a.OtherNodeName == b.OtherNodeName &&
		a.LocalIfName == b.LocalIfName &&
		a.RemoteIfName == b.RemoteIfName &&
		a.NextHopV4 == b.NextHopV4 &&
		a.NextHopV6 == b.NextHopV6 &&
		a.Metric == b.Metric &&
		a.AdjLabel == b.AdjLabel &&
		a.HasAdjLabel == b.HasAdjLabel &&
		a.Weight == b.Weight &&
		a.Overloaded == b.Overloaded &&
		a.OnlyUsedBy == b.OnlyUsedBy &&
		a.HasOnlyUsedBy == b.HasOnlyUsedBy
}

func sameNextHopAttrs(a, b model.Adjacency) bool {
	return a.NextHopV4 == b.NextHopV4 &&
		a.NextHopV6 == b.NextHopV6 &&
		a.LocalIfName == b.LocalIfName &&
		a.Weight == b.Weight
}

// AdjacencyCounts reports, across every half-edge declared in this area,
// how many already have a known counterpart (complete) versus not yet
// (partial) — the §7 "inconsistent graph" classification.
func (s *Store) AdjacencyCounts() (complete, partial int) {
	for node, ne := range s.nodes {
		for _, adj := range ne.half {
			if _, ok := s.counterpart(node, adj); ok {
				complete++
			} else {
				partial++
			}
		}
	}
	return complete, partial
}

// GetAdjacencyDatabase returns the most recently applied AdjacencyDatabase
// for node, if any.
func (s *Store) GetAdjacencyDatabase(node model.NodeName) (model.AdjacencyDatabase, bool) {
	ne, ok := s.nodes[node]
	if !ok {
		return model.AdjacencyDatabase{}, false
	}
	return ne.db, true
}

// RemoveNode drops a node's AdjacencyDatabase entirely, per the lifecycle
// rule that an empty adjacency set with a strictly-newer generation (or an
// explicit transport expiry) removes the entry.
func (s *Store) RemoveNode(node model.NodeName) {
	ne, ok := s.nodes[node]
	if !ok {
		return
	}
	for k, adj := range ne.half {
		counterpartAdj, hasCounterpart := s.counterpart(node, adj)
		id := makeLinkID(node, k.LocalIf, k.Other, adj.RemoteIfName)
		if hasCounterpart {
			id = makeLinkID(node, k.LocalIf, k.Other, counterpartAdj.LocalIfName)
		}
		delete(s.links, id)
	}
	delete(s.nodes, node)
}

// Nodes returns all known node names in sorted (deterministic) order.
func (s *Store) Nodes() []model.NodeName {
	out := make([]model.NodeName, 0, len(s.nodes))
	for n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NodeLabel returns the node's advertised MPLS node label, if any.
func (s *Store) NodeLabel(node model.NodeName) (uint32, bool) {
	ne, ok := s.nodes[node]
	if !ok || !ne.db.HasNodeLabel {
		return 0, false
	}
	return ne.db.NodeLabel, true
}

func (s *Store) drainOf(node model.NodeName) model.Drain {
	ne, ok := s.nodes[node]
	if !ok {
		return model.Drain{Kind: model.DrainNone}
	}
	return ne.db.Drain()
}

// NodeDrain exposes drainOf to callers outside the package (SpfSolver's
// drain-aware best-route selection, §4.3 step 2), which need to know an
// advertiser's own drain state independently of edge-walking.
func (s *Store) NodeDrain(node model.NodeName) model.Drain {
	return s.drainOf(node)
}

// EdgesForViewer returns the outgoing, directed, viewer-usable edges from
// `from`, for a Dijkstra run rooted at `viewer`. It implements §4.1's
// nuanced hard-drain rule: a hard-drained node's outgoing edges are omitted
// from every viewer's graph except the drained node's own (the node reading
// its own RIB still walks its own adjacencies), while its incoming edges
// remain usable by everyone. Soft-drain adds the far (arriving) node's
// nodeMetricIncrement to the directed cost. only-used-by restricts the edge
// to being walked only when viewer equals the named peer.
func (s *Store) EdgesForViewer(from model.NodeName, viewer model.NodeName) []DirectedEdge {
	ne, ok := s.nodes[from]
	if !ok {
		return nil
	}
	fromDrain := s.drainOf(from)
	if fromDrain.Kind == model.DrainNodeHard && from != viewer {
		return nil
	}

	out := make([]DirectedEdge, 0, len(ne.half))
	for _, adj := range ne.half {
		if adj.Overloaded {
			continue
		}
		counterpartAdj, ok := s.counterpart(from, adj)
		if !ok {
			continue // not yet bidirectionally visible
		}
		if counterpartAdj.Overloaded {
			continue
		}
		if adj.HasOnlyUsedBy && adj.OnlyUsedBy != viewer {
			continue
		}
		if counterpartAdj.HasOnlyUsedBy && counterpartAdj.OnlyUsedBy != viewer {
			continue
		}
		toDrain := s.drainOf(adj.OtherNodeName)

		metric := symmetricMaxMetric(adj, counterpartAdj)
		if toDrain.Kind == model.DrainNodeSoft {
			metric += toDrain.Increment
		}
		out = append(out, DirectedEdge{To: adj.OtherNodeName, Metric: metric, Adj: adj})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Adj.LocalIfName < out[j].Adj.LocalIfName
	})
	return out
}

// IsBidirectional reports whether node a declares an adjacency to b whose
// counterpart on b points back at a, regardless of drain/usability.
func (s *Store) IsBidirectional(a, b model.NodeName) bool {
	ne, ok := s.nodes[a]
	if !ok {
		return false
	}
	for _, adj := range ne.half {
		if adj.OtherNodeName != b {
			continue
		}
		if _, ok := s.counterpart(a, adj); ok {
			return true
		}
	}
	return false
}

// PropagationTelemetry is returned by RecordTransition for the caller to
// forward to a counters sink; it has Skip=true and no duration when the
// timestamp was zero, per §4.1 "skip telemetry when the timestamp is zero".
type PropagationTelemetry struct {
	Skip     bool
	Up       bool
	Duration time.Duration
}

// RecordTransition computes link up/down propagation-time telemetry for a
// non-initial update, reading the half-edge's previously recorded
// LinkStatus timestamp and comparing it against now.
func RecordTransition(now time.Time, status model.LinkStatus) PropagationTelemetry {
	if status.Timestamp.IsZero() {
		return PropagationTelemetry{Skip: true}
	}
	return PropagationTelemetry{
		Skip:     false,
		Up:       status.Up,
		Duration: now.Sub(status.Timestamp),
	}
}
