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

// PrefixType enumerates why a prefix is being advertised.
type PrefixType uint8

const (
	PrefixTypeDefault PrefixType = iota
	PrefixTypeConfig
	PrefixTypeVip
	PrefixTypeBgp
	PrefixTypeRib
)

func (t PrefixType) String() string {
	switch t {
	case PrefixTypeConfig:
		return "CONFIG"
	case PrefixTypeVip:
		return "VIP"
	case PrefixTypeBgp:
		return "BGP"
	case PrefixTypeRib:
		return "RIB"
	default:
		return "DEFAULT"
	}
}

// ForwardingType selects the dataplane programming style for a prefix.
type ForwardingType uint8

const (
	ForwardingTypeIP ForwardingType = iota
	ForwardingTypeSrMpls
)

// ForwardingAlgorithm selects how ECMP candidates are chosen.
type ForwardingAlgorithm uint8

const (
	ForwardingAlgorithmSpEcmp ForwardingAlgorithm = iota
	ForwardingAlgorithmKsp2EdEcmp
)

// PrefixEntry is a single (node, prefix, area) advertisement.
type PrefixEntry struct {
	Prefix              netip.Prefix
	Type                PrefixType
	ForwardingType      ForwardingType
	ForwardingAlgorithm ForwardingAlgorithm

	PathPreference   int32
	SourcePreference int32
	Distance         uint32
	DrainMetric      uint32

	Data      []byte // opaque
	AreaStack []Area // loop-prevention across redistributed prefixes
	MinNexthops int  // 0 means no hint
}

// PrefixKey identifies a single PrefixState slot.
type PrefixKey struct {
	Node   NodeName
	Prefix netip.Prefix
	Area   Area
}

func ClonePrefixEntry(e PrefixEntry) PrefixEntry {
	out := e
	out.Data = append([]byte(nil), e.Data...)
	out.AreaStack = append([]Area(nil), e.AreaStack...)
	return out
}
