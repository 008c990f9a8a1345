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

// Package spf implements the SpfSolver: given a viewer, a map of
// area->LinkState and a PrefixState, it produces the complete RIB for that
// viewer (Dijkstra, best-route selection, next-hop materialisation and
// segment-routing label routes).
//
// The Dijkstra shape is adapted from ospfSPF.go's frontier-based relaxation
// (a growing tree of visited vertices, re-sorted every round) but tracks
// ECMP next-hop sets by predecessor inheritance rather than literal path
// histories, and runs over a min-heap instead of a re-sorted slice.
package spf

import (
	"container/heap"
	"net/netip"
	"sort"

	"l3/decision/counters"
	"l3/decision/linkstate"
	"l3/decision/model"
)

// Config mirrors the SpfSolver inputs named in §4.3.
type Config struct {
	V4Enabled                bool
	EnableSegmentLabels      bool
	EnableAdjacencyLabels    bool
	EnableBestRouteSelection bool
	V4OverV6Nexthop          bool
}

// Solver is a pure function of (viewer, areas, prefixState) -> Rib. It
// caches the last per-area Dijkstra result so that a pure prefix-only
// change can be re-resolved without re-running Dijkstra (§4.3 "Partial vs.
// full rebuild").
type Solver struct {
	Viewer model.NodeName
	Config Config

	// Counters, when set, receives the §6/§7 counters this package can
	// observe directly (no_route_to_prefix, skipped_mpls_route,
	// no_route_to_label). Decision wires its own Set in; tests leave it nil.
	Counters *counters.Set

	cache map[model.Area]*areaResult
}

func NewSolver(viewer model.NodeName, cfg Config) *Solver {
	return &Solver{Viewer: viewer, Config: cfg, cache: make(map[model.Area]*areaResult)}
}

func (s *Solver) incNoRouteToPrefix() {
	if s.Counters != nil {
		s.Counters.NoRouteToPrefix.Add(1)
	}
}

func (s *Solver) incSkippedMplsRoute() {
	if s.Counters != nil {
		s.Counters.SkippedMplsRoute.Add(1)
	}
}

func (s *Solver) incNoRouteToLabel() {
	if s.Counters != nil {
		s.Counters.NoRouteToLabel.Add(1)
	}
}

type nhKey struct {
	Neighbor model.NodeName
	LocalIf  string
}

// areaResult is one area's Dijkstra output: shortest distance to every
// reachable node, and the set of the viewer's own first-hop adjacencies
// that start an equal-cost shortest path to that node.
type areaResult struct {
	dist      map[model.NodeName]uint32
	firstHops map[model.NodeName]map[nhKey]model.Adjacency
	ls        *linkstate.Store
}

type pqItem struct {
	node model.NodeName
	dist uint32
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)        { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// runDijkstra computes shortest distances and ECMP first-hop sets from
// viewer over area's directed metric graph.
func runDijkstra(area *linkstate.Store, viewer model.NodeName) *areaResult {
	dist := map[model.NodeName]uint32{viewer: 0}
	firstHops := map[model.NodeName]map[nhKey]model.Adjacency{viewer: {}}
	visited := map[model.NodeName]bool{}

	pq := &priorityQueue{{node: viewer, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		top := heap.Pop(pq).(pqItem)
		u := top.node
		if visited[u] {
			continue
		}
		visited[u] = true

		for _, edge := range area.EdgesForViewer(u, viewer) {
			v := edge.To
			nd := dist[u] + edge.Metric

			var contributed map[nhKey]model.Adjacency
			if u == viewer {
				contributed = map[nhKey]model.Adjacency{{Neighbor: edge.To, LocalIf: edge.Adj.LocalIfName}: edge.Adj}
			} else {
				contributed = firstHops[u]
			}

			cur, known := dist[v]
			switch {
			case !known || nd < cur:
				dist[v] = nd
				firstHops[v] = cloneNH(contributed)
				heap.Push(pq, pqItem{node: v, dist: nd})
			case nd == cur:
				mergeNH(firstHops[v], contributed)
			}
		}
	}

	return &areaResult{dist: dist, firstHops: firstHops, ls: area}
}

func cloneNH(in map[nhKey]model.Adjacency) map[nhKey]model.Adjacency {
	out := make(map[nhKey]model.Adjacency, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mergeNH(dst, src map[nhKey]model.Adjacency) {
	for k, v := range src {
		dst[k] = v
	}
}

// Compute runs a full rebuild: Dijkstra over every area, then per-prefix
// best-route selection, next-hop materialisation and MPLS label-route
// derivation. It refreshes the solver's per-area cache used by
// ComputePrefixes for partial rebuilds.
func (s *Solver) Compute(areas map[model.Area]*linkstate.Store, prefixes PrefixSource) *model.Rib {
	s.cache = make(map[model.Area]*areaResult, len(areas))
	for area, ls := range areas {
		s.cache[area] = runDijkstra(ls, s.Viewer)
	}

	rib := model.NewRib()
	for _, pfx := range sortedPrefixes(prefixes.Prefixes()) {
		s.resolvePrefix(rib, pfx, prefixes)
	}
	if s.Config.EnableSegmentLabels {
		s.buildMplsRoutes(rib, areas)
	}
	return rib
}

// ComputePrefixes re-resolves only the named prefixes against the solver's
// cached SPF results, per §4.3's "pure prefix changes -> recompute only the
// affected prefixes" partial-rebuild path. Callers must only use this when
// no topologyChanged/nodeLabelChanged has occurred since the last Compute.
func (s *Solver) ComputePrefixes(rib *model.Rib, changed []netip.Prefix, prefixes PrefixSource) {
	for _, pfx := range changed {
		s.resolvePrefix(rib, pfx, prefixes)
	}
}

// PrefixSource is the subset of prefixstate.Store the solver needs; kept as
// an interface so tests can supply a minimal fake.
type PrefixSource interface {
	Advertisers(prefix netip.Prefix) map[model.NodeArea]model.PrefixEntry
	Prefixes() []netip.Prefix
}

func sortedPrefixes(in []netip.Prefix) []netip.Prefix {
	out := append([]netip.Prefix(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

type candidate struct {
	na     model.NodeArea
	entry  model.PrefixEntry
	dist   uint32

	// drained is true when the advertising node itself is hard- or
	// soft-drained, or the entry's own DrainMetric is nonzero — an
	// effective discriminator that outranks the preference tuple
	// entirely (§4.3 step 2, spec.md §8 scenario 1).
	drained bool
}

func (s *Solver) resolvePrefix(rib *model.Rib, pfx netip.Prefix, prefixes PrefixSource) {
	advertisers := prefixes.Advertisers(pfx)
	if len(advertisers) == 0 {
		delete(rib.Unicast, pfx)
		delete(rib.BestRoutesCache, pfx)
		return
	}

	candidates := make([]candidate, 0, len(advertisers))
	for na, entry := range advertisers {
		ar, ok := s.cache[na.Area]
		if !ok {
			continue
		}
		d, reachable := ar.dist[na.Node]
		if !reachable {
			continue
		}
		drained := entry.DrainMetric > 0 || ar.ls.NodeDrain(na.Node).IsAny()
		candidates = append(candidates, candidate{na: na, entry: entry, dist: d, drained: drained})
	}
	if len(candidates) == 0 {
		s.incNoRouteToPrefix()
		delete(rib.Unicast, pfx)
		delete(rib.BestRoutesCache, pfx)
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if s.Config.EnableBestRouteSelection {
			// An effectively-drained advertiser (node hard/soft-drain, or its
			// own entry.DrainMetric > 0) loses to any undrained advertiser
			// outright, ahead of path/source preference entirely — spec.md §8
			// scenario 1 mandates the flip regardless of configured preference.
			if a.drained != b.drained {
				return !a.drained
			}
			if a.entry.PathPreference != b.entry.PathPreference {
				return a.entry.PathPreference > b.entry.PathPreference
			}
			if a.entry.SourcePreference != b.entry.SourcePreference {
				return a.entry.SourcePreference > b.entry.SourcePreference
			}
			if a.entry.DrainMetric != b.entry.DrainMetric {
				return a.entry.DrainMetric < b.entry.DrainMetric
			}
		}
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		return a.na.Less(b.na)
	})

	best := candidates[0]
	// When best-route selection is disabled, the allowed-advertiser set is
	// not narrowed by the preference tuple at all: every reachable
	// advertiser ECMPs in.
	var allowed []candidate
	if s.Config.EnableBestRouteSelection {
		allowed = []candidate{best}
		for _, c := range candidates[1:] {
			if c.drained == best.drained &&
				c.entry.PathPreference == best.entry.PathPreference &&
				c.entry.SourcePreference == best.entry.SourcePreference &&
				c.entry.DrainMetric == best.entry.DrainMetric {
				allowed = append(allowed, c)
			}
		}
	} else {
		allowed = candidates
	}

	cache := model.BestRoutesCacheEntry{Best: best.na}
	for _, c := range allowed {
		cache.Allowed = append(cache.Allowed, c.na)
	}
	sort.Slice(cache.Allowed, func(i, j int) bool { return cache.Allowed[i].Less(cache.Allowed[j]) })
	rib.BestRoutesCache[pfx] = cache

	viewerIsBest := best.na.Node == s.Viewer
	viewerIsCandidate := false
	for _, c := range candidates {
		if c.na.Node == s.Viewer {
			viewerIsCandidate = true
			break
		}
	}

	if viewerIsBest {
		// Self-origination: the viewer does not install a unicast route for
		// a prefix it wins outright.
		delete(rib.Unicast, pfx)
		return
	}

	nexthops := s.materialiseNextHops(allowed, pfx)
	entry := model.RibUnicastEntry{
		Prefix:                      pfx,
		NextHops:                    nexthops,
		Best:                        best.entry,
		HasBest:                     true,
		LocalRouteConsideredAndLost: viewerIsCandidate,
		IgpCost:                     best.dist,
	}
	rib.Unicast[pfx] = entry
}

func (s *Solver) materialiseNextHops(allowed []candidate, pfx netip.Prefix) []model.NextHop {
	type nhIdentity struct {
		area     model.Area
		neighbor model.NodeName
		ifName   string
	}
	merged := make(map[nhIdentity]model.NextHop)
	prefixIsV4 := pfx.Addr().Is4()

	for _, c := range allowed {
		if c.na.Node == s.Viewer {
			continue // the viewer cannot be its own next-hop
		}
		ar := s.cache[c.na.Area]
		firstHops := ar.firstHops[c.na.Node]
		for _, adj := range firstHops {
			addr := s.nextHopAddr(adj, prefixIsV4)
			id := nhIdentity{area: c.na.Area, neighbor: adj.OtherNodeName, ifName: adj.LocalIfName}
			merged[id] = model.NextHop{
				Addr:     addr,
				IfName:   adj.LocalIfName,
				Metric:   c.dist,
				Area:     c.na.Area,
				Neighbor: adj.OtherNodeName,
				Weight:   adj.Weight,
			}
		}
	}

	out := make([]model.NextHop, 0, len(merged))
	for _, nh := range merged {
		out = append(out, nh)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		if out[i].Neighbor != out[j].Neighbor {
			return out[i].Neighbor < out[j].Neighbor
		}
		return out[i].IfName < out[j].IfName
	})
	return out
}

func (s *Solver) nextHopAddr(adj model.Adjacency, prefixIsV4 bool) netip.Addr {
	if prefixIsV4 {
		if s.Config.V4Enabled && adj.NextHopV4.IsValid() {
			return adj.NextHopV4
		}
		if s.Config.V4OverV6Nexthop {
			return adj.NextHopV6
		}
		return adj.NextHopV4
	}
	return adj.NextHopV6
}

// buildMplsRoutes derives segment-routing label routes from the cached
// per-area Dijkstra results: one POP_AND_LOOKUP/PHP/SWAP route per reachable
// node-label, plus, when adjacency labels are enabled, one PHP route per
// viewer adjacency carrying an adjacency label. Node-label conflicts within
// an area are resolved by picking the lexically-greater node name as the
// label's owner and bumping that area's DuplicateLabelCounter; cross-area
// conflicts are resolved the same way without double-counting.
func (s *Solver) buildMplsRoutes(rib *model.Rib, areas map[model.Area]*linkstate.Store) {
	type owner struct {
		area model.Area
		node model.NodeName
	}
	winners := make(map[uint32]owner)

	for area, ar := range s.cache {
		ls := areas[area]
		claims := make(map[uint32][]model.NodeName)
		for node := range ar.dist {
			label, ok := ls.NodeLabel(node)
			if !ok {
				continue
			}
			if !model.ValidSrLabel(label) {
				s.incSkippedMplsRoute()
				continue
			}
			claims[label] = append(claims[label], node)
		}
		for label, nodes := range claims {
			sort.Slice(nodes, func(i, j int) bool { return nodes[i] > nodes[j] })
			winner := nodes[0]
			if len(nodes) > 1 {
				ls.DuplicateLabelCounter++
			}
			if cur, ok := winners[label]; !ok || winner > cur.node {
				winners[label] = owner{area: area, node: winner}
			}
		}
	}

	for label, own := range winners {
		ar := s.cache[own.area]
		nhs := s.labelNextHops(ar, own.node, own.area)
		if len(nhs) == 0 {
			s.incNoRouteToLabel()
			continue
		}
		rib.Mpls[label] = model.RibMplsEntry{Label: label, NextHops: nhs}
	}

	if s.Config.EnableAdjacencyLabels {
		for area, ar := range s.cache {
			self, ok := ar.ls.GetAdjacencyDatabase(s.Viewer)
			if !ok {
				continue
			}
			for _, adj := range self.Adjacencies {
				if !adj.HasAdjLabel {
					continue
				}
				if !model.ValidSrLabel(adj.AdjLabel) {
					s.incSkippedMplsRoute()
					continue
				}
				nh := model.NextHop{
					Addr:     s.nextHopAddr(adj, adj.NextHopV4.IsValid()),
					IfName:   adj.LocalIfName,
					Metric:   adj.Metric,
					Action:   model.MplsAction{Kind: model.MplsActionPhp},
					Area:     area,
					Neighbor: adj.OtherNodeName,
					Weight:   adj.Weight,
				}
				rib.Mpls[adj.AdjLabel] = model.RibMplsEntry{Label: adj.AdjLabel, NextHops: []model.NextHop{nh}}
			}
		}
	}
}

// labelNextHops materialises the next-hops for node's node-label route: a
// single PHP action when the viewer's first hop toward node is node itself,
// otherwise SWAP carrying node's own label along each ECMP first hop, and a
// self-referencing POP_AND_LOOKUP when node is the viewer.
func (s *Solver) labelNextHops(ar *areaResult, node model.NodeName, area model.Area) []model.NextHop {
	if node == s.Viewer {
		return []model.NextHop{{Action: model.MplsAction{Kind: model.MplsActionPopAndLookup}, Area: area, Neighbor: node}}
	}

	label, _ := ar.ls.NodeLabel(node)
	dist := ar.dist[node]
	out := make([]model.NextHop, 0, len(ar.firstHops[node]))
	for _, adj := range ar.firstHops[node] {
		action := model.MplsAction{Kind: model.MplsActionSwap, Label: label}
		if adj.OtherNodeName == node {
			action = model.MplsAction{Kind: model.MplsActionPhp}
		}
		out = append(out, model.NextHop{
			Addr:     s.nextHopAddr(adj, true),
			IfName:   adj.LocalIfName,
			Metric:   dist,
			Action:   action,
			Area:     area,
			Neighbor: adj.OtherNodeName,
			Weight:   adj.Weight,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Neighbor != out[j].Neighbor {
			return out[i].Neighbor < out[j].Neighbor
		}
		return out[i].IfName < out[j].IfName
	})
	return out
}
