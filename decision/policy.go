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
	"errors"
	"net/netip"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"gopkg.in/yaml.v3"

	"l3/decision/counters"
	"l3/decision/model"
)

// policyCacheKey is the single slot the rib-policy TTL cache ever holds;
// Decision only ever has zero or one active policy.
const policyCacheKey = "active"

var (
	ErrPolicyAbsent  = errors.New("decision: no active rib policy")
	ErrPolicyInvalid = errors.New("decision: invalid rib policy")
)

// Matcher selects the routes a Statement applies to. Tag predicates named
// in §4.4 are not modeled: PrefixEntry carries no tag field upstream, so
// there is nothing to match against; Prefixes and AreaStackContains cover
// everything the data model actually exposes.
type Matcher struct {
	Prefixes          []netip.Prefix
	AreaStackContains []model.Area
}

func (m Matcher) matches(pfx netip.Prefix, best model.PrefixEntry) bool {
	if len(m.Prefixes) > 0 {
		found := false
		for _, p := range m.Prefixes {
			if p == pfx {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(m.AreaStackContains) > 0 {
		found := false
		for _, want := range m.AreaStackContains {
			for _, have := range best.AreaStack {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Statement is one policy rule: a matcher plus the only action this core
// implements, set_weight.
type Statement struct {
	Matcher   Matcher
	SetWeight map[model.NodeName]uint32
}

// Policy is the RIB-policy document accepted by set().
type Policy struct {
	Statements []Statement
	TTL        time.Duration
}

func validatePolicy(p *Policy) error {
	if p == nil || len(p.Statements) == 0 {
		return ErrPolicyInvalid
	}
	for _, st := range p.Statements {
		if len(st.Matcher.Prefixes) == 0 && len(st.Matcher.AreaStackContains) == 0 {
			return ErrPolicyInvalid
		}
		if len(st.SetWeight) == 0 {
			return ErrPolicyInvalid
		}
	}
	return nil
}

type policyCmdKind int

const (
	cmdSet policyCmdKind = iota
	cmdGet
	cmdClear
	cmdSave
)

type policyRequest struct {
	kind   policyCmdKind
	policy *Policy
	reply  chan policyReply
}

type policyReply struct {
	policy *Policy
	err    error
}

// policyState is the §4.5 Absent -> Active(ttl) -> Expired lifecycle. The
// cache tracks the TTL in real time with lazy expiry; deadline is kept
// alongside it as the absolute timestamp savePolicy persists, and expired
// also checks it against the caller-supplied now.
type policyState struct {
	active   *Policy
	deadline time.Time
	cache    *ttlcache.Cache[string, *Policy]
	dirty    bool
}

func newPolicyState() *policyState {
	return &policyState{cache: ttlcache.New[string, *Policy]()}
}

func (s *policyState) setActive(p *Policy, now time.Time) {
	s.active = p
	s.deadline = now.Add(p.TTL)
	s.cache.Set(policyCacheKey, p, p.TTL)
	s.dirty = true
}

func (s *policyState) clear() {
	s.active = nil
	s.cache.GetAndDelete(policyCacheKey)
	s.dirty = true
}

// expired reports Expired per the now argument callers pass (so tests can
// drive the clock) OR-ed with the ttlcache entry's own real-time expiry,
// whichever trips first.
func (s *policyState) expired(now time.Time) bool {
	return s.active == nil || now.After(s.deadline) || s.cache.Get(policyCacheKey) == nil
}

func (s *policyState) getActive(now time.Time) (*Policy, error) {
	if s.expired(now) {
		return nil, ErrPolicyAbsent
	}
	return s.active, nil
}

// apply overlays set_weight actions onto rib's unicast routes. A route that
// a statement changed and whose next-hops then all carry weight zero is
// counted in invalidated_routes but left in place, per §4.4.
func (s *policyState) apply(rib *model.Rib, now time.Time, ctr *counters.Set) {
	if s.expired(now) {
		return
	}
	for pfx, entry := range rib.Unicast {
		changed := false
		for _, st := range s.active.Statements {
			if !st.Matcher.matches(pfx, entry.Best) {
				continue
			}
			for i := range entry.NextHops {
				if w, ok := st.SetWeight[entry.NextHops[i].Neighbor]; ok {
					entry.NextHops[i].Weight = w
					changed = true
				}
			}
		}
		if !changed {
			continue
		}
		allZero := len(entry.NextHops) > 0
		for _, nh := range entry.NextHops {
			if nh.Weight != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			ctr.InvalidatedRoutes.Add(1)
		}
		rib.Unicast[pfx] = entry
	}
}

func (d *Decision) handlePolicyRequest(req policyRequest) {
	switch req.kind {
	case cmdSet:
		if err := validatePolicy(req.policy); err != nil {
			req.reply <- policyReply{err: err}
			return
		}
		d.policy.setActive(req.policy, time.Now())
		req.reply <- policyReply{}
	case cmdGet:
		p, err := d.policy.getActive(time.Now())
		req.reply <- policyReply{policy: p, err: err}
	case cmdClear:
		d.policy.clear()
		req.reply <- policyReply{}
	case cmdSave:
		d.savePolicy()
		req.reply <- policyReply{}
	default:
		req.reply <- policyReply{err: ErrPolicyInvalid}
	}
}

// SetPolicy, GetPolicy and ClearPolicy are the synchronous RIB-policy
// commands from §6, round-tripped through the event loop so they observe
// and mutate policyState on the single-threaded loop.
func (d *Decision) SetPolicy(p *Policy) error {
	reply := make(chan policyReply, 1)
	d.policyCh <- policyRequest{kind: cmdSet, policy: p, reply: reply}
	return (<-reply).err
}

func (d *Decision) GetPolicy() (*Policy, error) {
	reply := make(chan policyReply, 1)
	d.policyCh <- policyRequest{kind: cmdGet, reply: reply}
	r := <-reply
	return r.policy, r.err
}

func (d *Decision) ClearPolicy() error {
	reply := make(chan policyReply, 1)
	d.policyCh <- policyRequest{kind: cmdClear, reply: reply}
	return (<-reply).err
}

// PersistPolicyNow saves the active policy immediately instead of waiting
// for the policy-save debounce window, for one-shot CLI callers that don't
// stay attached long enough to observe the debounce timers fire.
func (d *Decision) PersistPolicyNow() error {
	reply := make(chan policyReply, 1)
	d.policyCh <- policyRequest{kind: cmdSave, reply: reply}
	return (<-reply).err
}

// persistedPolicy is the on-disk shape saved by the policy-save debouncer
// and loaded at startup, per §6 "Persisted state" / §9 open question (c):
// only durability and TTL-honouring are normative, so this shape is ours.
type persistedPolicy struct {
	Policy             *Policy `yaml:"policy"`
	AbsoluteDeadlineMs int64   `yaml:"absolute_deadline_ms"`
}

func (d *Decision) savePolicy() {
	d.policy.dirty = false
	if d.cfg.PolicyFilePath == "" {
		return
	}
	if d.policy.active == nil {
		if err := os.Remove(d.cfg.PolicyFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Error("remove persisted rib policy", "path", d.cfg.PolicyFilePath, "error", err)
		}
		return
	}
	out := persistedPolicy{Policy: d.policy.active, AbsoluteDeadlineMs: d.policy.deadline.UnixMilli()}
	buf, err := yaml.Marshal(out)
	if err != nil {
		d.logger.Error("marshal rib policy for persistence", "error", err)
		return
	}
	if err := os.WriteFile(d.cfg.PolicyFilePath, buf, 0o600); err != nil {
		d.logger.Error("persist rib policy", "path", d.cfg.PolicyFilePath, "error", err)
	}
}

// LoadPolicyFile loads a previously persisted policy, discarding it if its
// TTL has already elapsed. Unreadable or corrupt files are treated as
// absent, never as an error, per §6.
func (d *Decision) LoadPolicyFile() {
	if d.cfg.PolicyFilePath == "" {
		return
	}
	buf, err := os.ReadFile(d.cfg.PolicyFilePath)
	if err != nil {
		return
	}
	var in persistedPolicy
	if err := yaml.Unmarshal(buf, &in); err != nil || in.Policy == nil {
		return
	}
	deadline := time.UnixMilli(in.AbsoluteDeadlineMs)
	remaining := deadline.Sub(time.Now())
	if remaining <= 0 {
		return
	}
	d.policy.active = in.Policy
	d.policy.deadline = deadline
	d.policy.cache.Set(policyCacheKey, in.Policy, remaining)
}
