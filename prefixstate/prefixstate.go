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

// Package prefixstate holds the (node, prefix, area) -> PrefixEntry mapping
// ingested from the distributed prefix-advertisement database.
package prefixstate

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"l3/decision/model"
)

// ReceivedRoute is one row of a getReceivedRoutesFiltered result.
type ReceivedRoute struct {
	Node   model.NodeName
	Area   model.Area
	Prefix netip.Prefix
	Entry  model.PrefixEntry
}

// Filter narrows getReceivedRoutesFiltered; a nil field matches anything.
type Filter struct {
	Node   *model.NodeName
	Area   *model.Area
	Prefix *netip.Prefix
}

func (f Filter) match(r ReceivedRoute) bool {
	if f.Node != nil && *f.Node != r.Node {
		return false
	}
	if f.Area != nil && *f.Area != r.Area {
		return false
	}
	if f.Prefix != nil && *f.Prefix != r.Prefix {
		return false
	}
	return true
}

// Store is the PrefixState described in §4.2.
type Store struct {
	byKey     map[model.PrefixKey]model.PrefixEntry
	byPrefix  bart.Table[map[model.NodeArea]model.PrefixEntry]
	prefixSet map[netip.Prefix]struct{}
}

func New() *Store {
	return &Store{
		byKey:     make(map[model.PrefixKey]model.PrefixEntry),
		prefixSet: make(map[netip.Prefix]struct{}),
	}
}

func sameEntry(a, b model.PrefixEntry) bool {
	if a.Prefix != b.Prefix || a.Type != b.Type || a.ForwardingType != b.ForwardingType ||
		a.ForwardingAlgorithm != b.ForwardingAlgorithm || a.PathPreference != b.PathPreference ||
		a.SourcePreference != b.SourcePreference || a.Distance != b.Distance ||
		a.DrainMetric != b.DrainMetric || a.MinNexthops != b.MinNexthops {
		return false
	}
	if len(a.Data) != len(b.Data) || len(a.AreaStack) != len(b.AreaStack) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	for i := range a.AreaStack {
		if a.AreaStack[i] != b.AreaStack[i] {
			return false
		}
	}
	return true
}

// UpdatePrefix applies an advertisement (or re-advertisement). It returns
// the set of prefixes whose advertiser set actually changed; an idempotent
// re-application of an identical entry returns an empty set so the
// Decision-level debouncer can suppress the no-op.
func (s *Store) UpdatePrefix(key model.PrefixKey, entry model.PrefixEntry) map[netip.Prefix]struct{} {
	if existing, ok := s.byKey[key]; ok && sameEntry(existing, entry) {
		return map[netip.Prefix]struct{}{}
	}

	s.byKey[key] = model.ClonePrefixEntry(entry)

	advertisers, _ := s.byPrefix.Get(key.Prefix)
	if advertisers == nil {
		advertisers = make(map[model.NodeArea]model.PrefixEntry)
	}
	advertisers[model.NodeArea{Node: key.Node, Area: key.Area}] = model.ClonePrefixEntry(entry)
	s.byPrefix.Insert(key.Prefix, advertisers)
	s.prefixSet[key.Prefix] = struct{}{}

	return map[netip.Prefix]struct{}{key.Prefix: {}}
}

// DeletePrefix withdraws an advertisement. It returns the changed-prefix
// set, empty if the key was not present (idempotent withdrawal).
func (s *Store) DeletePrefix(key model.PrefixKey) map[netip.Prefix]struct{} {
	if _, ok := s.byKey[key]; !ok {
		return map[netip.Prefix]struct{}{}
	}
	delete(s.byKey, key)

	advertisers, ok := s.byPrefix.Get(key.Prefix)
	if ok {
		delete(advertisers, model.NodeArea{Node: key.Node, Area: key.Area})
		if len(advertisers) == 0 {
			s.byPrefix.Delete(key.Prefix)
			delete(s.prefixSet, key.Prefix)
		} else {
			s.byPrefix.Insert(key.Prefix, advertisers)
		}
	}
	return map[netip.Prefix]struct{}{key.Prefix: {}}
}

// Advertisers returns every (node, area) -> entry currently advertising
// prefix, the core lookup SpfSolver's best-route selection runs over.
func (s *Store) Advertisers(prefix netip.Prefix) map[model.NodeArea]model.PrefixEntry {
	advertisers, ok := s.byPrefix.Get(prefix)
	if !ok {
		return nil
	}
	return advertisers
}

// Prefixes returns every prefix with at least one live advertisement.
func (s *Store) Prefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(s.prefixSet))
	for pfx := range s.prefixSet {
		out = append(out, pfx)
	}
	return out
}

// GetReceivedRoutesFiltered returns per-prefix advertisement details
// matching filter.
func (s *Store) GetReceivedRoutesFiltered(filter Filter) []ReceivedRoute {
	out := make([]ReceivedRoute, 0)
	for key, entry := range s.byKey {
		r := ReceivedRoute{Node: key.Node, Area: key.Area, Prefix: key.Prefix, Entry: entry}
		if filter.match(r) {
			out = append(out, r)
		}
	}
	return out
}
