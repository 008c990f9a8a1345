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

package model

import "net/netip"

// MinSrLabel and MaxSrLabel bound the valid segment-routing label range:
// labels 0-15 are reserved per RFC 3032, and the MPLS label field is 20
// bits wide.
const (
	MinSrLabel uint32 = 16
	MaxSrLabel uint32 = 1<<20 - 1
)

// ValidSrLabel reports whether label falls inside the usable SR label
// range.
func ValidSrLabel(label uint32) bool {
	return label >= MinSrLabel && label <= MaxSrLabel
}

// MplsActionKind tags the label operation carried by a NextHop.
type MplsActionKind uint8

const (
	MplsActionNone MplsActionKind = iota
	MplsActionPopAndLookup
	MplsActionPhp
	MplsActionSwap
	MplsActionPush
)

// MplsAction is the optional label action a NextHop carries.
type MplsAction struct {
	Kind   MplsActionKind
	Label  uint32   // valid for Swap
	Labels []uint32 // valid for Push
}

// NextHop is one ECMP candidate for a route.
type NextHop struct {
	Addr      netip.Addr
	IfName    string // optional for remote next-hops
	Metric    uint32 // IGP cost from viewer to exit
	Action    MplsAction
	Area      Area
	Neighbor  NodeName
	Weight    uint32
}

// RibUnicastEntry is the computed IP route for one prefix.
type RibUnicastEntry struct {
	Prefix              netip.Prefix
	NextHops            []NextHop
	Best                PrefixEntry
	HasBest             bool
	LocalRouteConsideredAndLost bool
	IgpCost             uint32
	Drop                bool // deliberate black-hole; no next-hops expected
}

// RibMplsEntry is the computed label-switched route for one MPLS label.
type RibMplsEntry struct {
	Label    uint32
	NextHops []NextHop
}

// BestRoutesCacheEntry records which advertisers tied for best, and which
// one actually won, for a single prefix.
type BestRoutesCacheEntry struct {
	Allowed []NodeArea
	Best    NodeArea
}

// Rib is the full computed result for one viewer.
type Rib struct {
	Unicast         map[netip.Prefix]RibUnicastEntry
	Mpls            map[uint32]RibMplsEntry
	BestRoutesCache map[netip.Prefix]BestRoutesCacheEntry
}

func NewRib() *Rib {
	return &Rib{
		Unicast:         make(map[netip.Prefix]RibUnicastEntry),
		Mpls:            make(map[uint32]RibMplsEntry),
		BestRoutesCache: make(map[netip.Prefix]BestRoutesCacheEntry),
	}
}
