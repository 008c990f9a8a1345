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

import (
	"net/netip"
	"time"
)

// Adjacency is a directional half of a link, as declared by one endpoint.
type Adjacency struct {
	OtherNodeName  NodeName
	LocalIfName    string
	RemoteIfName   string
	NextHopV6      netip.Addr // link-local
	NextHopV4      netip.Addr
	Metric         uint32 // positive integer
	AdjLabel       uint32 // MPLS adjacency label, 0 if unset
	HasAdjLabel    bool
	Weight         uint32
	Overloaded     bool // per-adjacency hard drain
	OnlyUsedBy     NodeName
	HasOnlyUsedBy  bool
	LastUpdateTime time.Time
}

// LinkStatus records when a half-edge last transitioned up or down, for
// propagation-time telemetry.
type LinkStatus struct {
	Up        bool
	Timestamp time.Time
}

// PerfEvent is one entry in a perf-events trail: a named checkpoint plus the
// wall-clock time it was recorded.
type PerfEvent struct {
	Name      string
	Timestamp time.Time
}

// AdjacencyDatabase is the per-(node, area) adjacency record ingested from
// the link-state transport.
type AdjacencyDatabase struct {
	ThisNodeName        NodeName
	NodeLabel           uint32
	HasNodeLabel        bool
	Adjacencies         []Adjacency
	IsOverloaded        bool // node hard-drain
	NodeMetricIncrement uint32 // node soft-drain, >= 0

	// LinkStatuses is keyed by "otherNode:localIf" and records the last
	// transition time/state of that half-edge, used for propagation-time
	// telemetry. Not part of the wire format proper but maintained
	// alongside it.
	LinkStatuses map[string]LinkStatus

	PerfEvents []PerfEvent
}

func AdjKey(otherNode NodeName, localIf string) string {
	return string(otherNode) + ":" + localIf
}

// Drain reports the node-level drain state carried by this database.
func (db *AdjacencyDatabase) Drain() Drain {
	if db.IsOverloaded {
		return Drain{Kind: DrainNodeHard}
	}
	if db.NodeMetricIncrement > 0 {
		return Drain{Kind: DrainNodeSoft, Increment: db.NodeMetricIncrement}
	}
	return Drain{Kind: DrainNone}
}

func CloneAdjacencyDatabase(db AdjacencyDatabase) AdjacencyDatabase {
	out := db
	out.Adjacencies = append([]Adjacency(nil), db.Adjacencies...)
	out.LinkStatuses = make(map[string]LinkStatus, len(db.LinkStatuses))
	for k, v := range db.LinkStatuses {
		out.LinkStatuses[k] = v
	}
	out.PerfEvents = append([]PerfEvent(nil), db.PerfEvents...)
	return out
}
