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
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "decisiond",
	Short: "Interior routing decision engine",
	Long:  `decisiond computes the unicast and MPLS RIB from per-area link-state and prefix advertisements.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: "run", Title: "Run decisiond"})
	rootCmd.AddGroup(&cobra.Group{ID: "policy", Title: "RIB policy"})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "decisiond.yaml", "daemon configuration file")
}
