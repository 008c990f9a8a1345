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
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/tint"
	"github.com/spf13/cobra"

	"l3/decision/config"
	"l3/decision/decision"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run decisiond",
	Long:    `Runs the decision engine in the foreground. Ctrl-C (or SIGTERM) drains the event loop and persists the active RIB policy before exiting.`,
	GroupID: "run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := slog.LevelInfo
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: string(cfg.Viewer),
		}))

		d := decision.New(decision.Config{
			Viewer:         cfg.Viewer,
			Areas:          cfg.Areas,
			Solver:         cfg.Solver.ToSpfConfig(),
			DebounceMin:    cfg.DebounceMin(),
			DebounceMax:    cfg.DebounceMax(),
			PolicySaveMin:  cfg.PolicySaveMin(),
			PolicySaveMax:  cfg.PolicySaveMax(),
			PolicyFilePath: cfg.PolicyFilePath,
		}, logger)
		d.LoadPolicyFile()

		d.Sink = func(u decision.DecisionRouteUpdate) {
			logger.Info("rib update",
				"unicast_updates", len(u.UnicastRoutesToUpdate),
				"unicast_deletes", len(u.UnicastRoutesToDelete),
				"mpls_updates", len(u.MplsRoutesToUpdate),
				"mpls_deletes", len(u.MplsRoutesToDelete))
		}

		go d.Run()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		logger.Info("shutting down")
		d.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
