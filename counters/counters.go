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

// Package counters exposes Decision's named counters over expvar, the same
// way perf/vars.go wires its own rolling counters.
package counters

import (
	"expvar"
	"fmt"

	"github.com/encodeous/metric"
)

// Set is one Decision instance's counter bundle: exactly the counters named
// by the external interfaces, each published under its own expvar name
// (prefixed by instanceID, since expvar names are process-global) so
// multiple Decision instances in one process don't collide.
//
// NumNodes/NumPrefixes/NumPartialAdjacencies/NumCompleteAdjacencies are
// gauges (set to a current value, not accumulated). No Gauge type exists in
// metric — perf/vars.go only ever exercises NewCounter/NewHistogram — so
// these use expvar.Int directly, the same primitive metric.Counter and
// metric.Histogram register themselves into via expvar.Publish.
type Set struct {
	SpfRuns            metric.Metric
	RouteBuildRuns      metric.Metric
	GetRouteForPrefix   metric.Metric
	DuplicateNodeLabel  metric.Metric
	NoRouteToPrefix     metric.Metric
	SkippedMplsRoute    metric.Metric
	NoRouteToLabel      metric.Metric
	InvalidatedRoutes   metric.Metric

	LinkUpPropagationMs   metric.Metric
	LinkDownPropagationMs metric.Metric

	NumNodes               *expvar.Int
	NumPrefixes            *expvar.Int
	NumPartialAdjacencies  *expvar.Int
	NumCompleteAdjacencies *expvar.Int
}

// New builds a Set and publishes every field under "<instanceID>:<name>",
// where name is the counter's external name verbatim.
func New(instanceID string) *Set {
	s := &Set{
		SpfRuns:               metric.NewCounter("1m1s"),
		RouteBuildRuns:        metric.NewCounter("1m1s"),
		GetRouteForPrefix:     metric.NewCounter("1m1s"),
		DuplicateNodeLabel:    metric.NewCounter("1m1s"),
		NoRouteToPrefix:       metric.NewCounter("1m1s"),
		SkippedMplsRoute:      metric.NewCounter("1m1s"),
		NoRouteToLabel:        metric.NewCounter("1m1s"),
		InvalidatedRoutes:     metric.NewCounter("1m1s"),
		LinkUpPropagationMs:   metric.NewHistogram("1m1s"),
		LinkDownPropagationMs: metric.NewHistogram("1m1s"),
		NumNodes:               new(expvar.Int),
		NumPrefixes:            new(expvar.Int),
		NumPartialAdjacencies:  new(expvar.Int),
		NumCompleteAdjacencies: new(expvar.Int),
	}
	publish := func(name string, v expvar.Var) {
		expvar.Publish(fmt.Sprintf("%s:%s", instanceID, name), v)
	}
	publish("decision.spf_runs", s.SpfRuns)
	publish("decision.route_build_runs", s.RouteBuildRuns)
	publish("decision.get_route_for_prefix", s.GetRouteForPrefix)
	publish("decision.duplicate_node_label.count.60", s.DuplicateNodeLabel)
	publish("decision.no_route_to_prefix.count.60", s.NoRouteToPrefix)
	publish("decision.skipped_mpls_route.count.60", s.SkippedMplsRoute)
	publish("decision.no_route_to_label.count.60", s.NoRouteToLabel)
	publish("decision.rib_policy.invalidated_routes.count", s.InvalidatedRoutes)
	publish("decision.linkstate.up.propagation_time_ms.avg.60", s.LinkUpPropagationMs)
	publish("decision.linkstate.down.propagation_time_ms.avg.60", s.LinkDownPropagationMs)
	publish("decision.num_nodes", s.NumNodes)
	publish("decision.num_prefixes", s.NumPrefixes)
	publish("decision.num_partial_adjacencies", s.NumPartialAdjacencies)
	publish("decision.num_complete_adjacencies", s.NumCompleteAdjacencies)
	return s
}
