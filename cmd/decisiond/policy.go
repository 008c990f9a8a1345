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

package main

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"l3/decision/config"
	"l3/decision/decision"
	"l3/decision/model"
)

var policyCmd = &cobra.Command{
	Use:     "policy",
	Short:   "Inspect or change the persisted RIB policy",
	GroupID: "policy",
}

var policyGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active RIB policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadPolicyScratch()
		if err != nil {
			return err
		}
		p, err := d.GetPolicy()
		if err != nil {
			fmt.Println(err)
			return nil
		}
		fmt.Printf("ttl=%s statements=%d\n", p.TTL, len(p.Statements))
		for _, st := range p.Statements {
			fmt.Printf("  prefixes=%v area_stack=%v set_weight=%v\n",
				st.Matcher.Prefixes, st.Matcher.AreaStackContains, st.SetWeight)
		}
		return nil
	},
}

var policyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the persisted RIB policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadPolicyScratch()
		if err != nil {
			return err
		}
		if err := d.ClearPolicy(); err != nil {
			return err
		}
		return d.PersistPolicyNow()
	},
}

var (
	policyTTL      time.Duration
	policyPrefixes []string
	policyWeights  []string
)

var policySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the RIB policy: one set_weight statement matching --prefix, applying --weight node=value pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefixes := make([]netip.Prefix, 0, len(policyPrefixes))
		for _, s := range policyPrefixes {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return fmt.Errorf("invalid --prefix %q: %w", s, err)
			}
			prefixes = append(prefixes, p)
		}
		weights := make(map[model.NodeName]uint32, len(policyWeights))
		for _, s := range policyWeights {
			node, val, ok := strings.Cut(s, "=")
			if !ok {
				return fmt.Errorf("invalid --weight %q, want node=value", s)
			}
			w, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid --weight %q: %w", s, err)
			}
			weights[model.NodeName(node)] = uint32(w)
		}

		d, err := loadPolicyScratch()
		if err != nil {
			return err
		}
		err = d.SetPolicy(&decision.Policy{
			TTL: policyTTL,
			Statements: []decision.Statement{{
				Matcher:   decision.Matcher{Prefixes: prefixes},
				SetWeight: weights,
			}},
		})
		if err != nil {
			return err
		}
		return d.PersistPolicyNow()
	},
}

// loadPolicyScratch builds a Decision scoped only to the on-disk policy
// file and starts its event loop, which the policyCh round-trip of
// SetPolicy/GetPolicy/ClearPolicy needs. The loop lives for the lifetime
// of a single CLI invocation and receives no link-state or prefix input.
func loadPolicyScratch() (*decision.Decision, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	d := decision.New(decision.Config{
		Viewer:         cfg.Viewer,
		Areas:          cfg.Areas,
		Solver:         cfg.Solver.ToSpfConfig(),
		DebounceMin:    cfg.DebounceMin(),
		DebounceMax:    cfg.DebounceMax(),
		PolicySaveMin:  cfg.PolicySaveMin(),
		PolicySaveMax:  cfg.PolicySaveMax(),
		PolicyFilePath: cfg.PolicyFilePath,
	}, slog.Default())
	d.LoadPolicyFile()
	go d.Run()
	return d, nil
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyGetCmd, policySetCmd, policyClearCmd)

	policySetCmd.Flags().DurationVar(&policyTTL, "ttl", time.Hour, "how long the policy stays active")
	policySetCmd.Flags().StringArrayVar(&policyPrefixes, "prefix", nil, "prefix to match (repeatable)")
	policySetCmd.Flags().StringArrayVar(&policyWeights, "weight", nil, "node=weight override (repeatable)")
}
