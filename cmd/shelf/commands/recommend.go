// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewRecommendCmd creates the recommend command
func NewRecommendCmd(o *opts.RootOpts) *cobra.Command {
	var review, yes bool

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Find duplicates, stale files and clutter",
		Long: `Recommend analyzes the source folder without changing it. With --review
the findings are moved into the review folder below the target, as a plan
that can be reverted like any other.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			items, err := o.Engine.Recommend(ctx)
			if err != nil {
				return errors.Errorf("analyzing: %w", err)
			}
			if len(items) == 0 {
				console.Success("nothing to recommend")
				return nil
			}

			console.Header("recommendations for " + o.Config.Source)
			console.Recommendations(items, o.Config.Source)
			if !review {
				return nil
			}

			p, err := o.Engine.ReviewPlan(ctx, items)
			if err != nil {
				return errors.Errorf("building review plan: %w", err)
			}
			console.LogNewline()
			console.Plan(ctx, p)
			if p.MoveCount() == 0 {
				return nil
			}
			if !yes {
				ok, err := pterm.DefaultInteractiveConfirm.Show("Move these into the review folder?")
				if err != nil {
					return errors.Errorf("asking for confirmation: %w", err)
				}
				if !ok {
					console.Warning("aborted")
					return nil
				}
			}

			summary, err := o.Engine.Apply(ctx, p)
			console.ApplySummary(ctx, summary)
			if err != nil {
				return errors.Errorf("applying review plan %s: %w", p.ID, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&review, "review", false, "move findings into the review folder")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "move without asking")
	return cmd
}
