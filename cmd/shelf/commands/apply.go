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

// NewApplyCmd creates the apply command
func NewApplyCmd(o *opts.RootOpts) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Move files into the target folder",
		Long: `Apply builds a fresh plan, shows it and, once confirmed, moves every
group into place. Each move is journaled so the plan can be reverted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			p, err := o.Engine.Preview(ctx)
			if err != nil {
				return errors.Errorf("previewing: %w", err)
			}

			console.Header("organizing " + o.Config.Source)
			console.Plan(ctx, p)

			if p.MoveCount() == 0 {
				console.Info("nothing to move")
				return nil
			}
			if !yes {
				ok, err := pterm.DefaultInteractiveConfirm.Show("Apply this plan?")
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
				return errors.Errorf("applying plan %s: %w", p.ID, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	return cmd
}
