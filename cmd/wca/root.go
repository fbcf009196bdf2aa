// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zfoong/WhiteCollarAgent-sub000/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "wca",
	Short:   "White-collar agent kernel - autonomous LLM agent runtime",
	Long:    `wca runs the agent kernel: a trigger-driven loop that plans tasks, selects actions, executes them in a sandboxed scratch space, and streams progress over SSE.`,
	Version: version.Get(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKernel(config)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $WCA_DATA_DIR/wca.yaml)")

	// LLM flags
	rootCmd.PersistentFlags().String("llm-provider", "anthropic", "LLM provider (anthropic, openai, responses, gemini, byteplus)")
	rootCmd.PersistentFlags().String("llm-model", "", "model override (empty uses the provider default)")

	// Budget flags
	rootCmd.PersistentFlags().Int("max-actions", 60, "maximum actions per task")
	rootCmd.PersistentFlags().Int("max-tokens", 2000000, "maximum tokens per task")

	// Feed flags
	rootCmd.PersistentFlags().String("feed-addr", "127.0.0.1:5800", "progress feed bind address (empty disables)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))

	_ = viper.BindPFlag("budgets.max_actions_per_task", rootCmd.PersistentFlags().Lookup("max-actions"))
	_ = viper.BindPFlag("budgets.max_token_per_task", rootCmd.PersistentFlags().Lookup("max-tokens"))

	_ = viper.BindPFlag("feed.addr", rootCmd.PersistentFlags().Lookup("feed-addr"))

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
