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
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/actions"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/search"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List registered actions",
	Long:  `Loads the action registry (builtins plus the actions directory) and prints every action with its type, visibility mode, and description.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listActions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}

// listActions loads the registry read-only; builtins carry no-op
// handlers since nothing is executed here.
func listActions(cmd *cobra.Command) error {
	ctx := context.Background()
	actionsDir := filepath.Join(config.DataDir, actions.ActionDirName)

	index, err := search.NewChromem("", "actions", search.NewHashEmbedder(search.DefaultDimensions))
	if err != nil {
		return fmt.Errorf("open action index: %w", err)
	}
	registry := actions.NewRegistry(actionsDir, index, zap.NewNop())
	if err := registry.LoadDir(ctx); err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	if err := actions.RegisterBuiltins(ctx, registry, nil); err != nil {
		return fmt.Errorf("register builtins: %w", err)
	}

	all := registry.All()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tMODE\tDESCRIPTION")
	for _, a := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Type, a.Mode, a.Description)
	}
	return w.Flush()
}
