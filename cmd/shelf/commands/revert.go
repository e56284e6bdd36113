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
	"github.com/spf13/cobra"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewRevertCmd creates the revert command
func NewRevertCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "revert PLAN_ID",
		Short: "Undo an applied plan",
		Long: `Revert moves every file of a plan back to where it came from, newest
move first. Moves that cannot be undone are reported and left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			summary, err := o.Engine.Revert(ctx, args[0])
			if err == nil || summary.Reverted+summary.Failed > 0 {
				console.RevertSummary(ctx, summary)
			}
			if err != nil {
				return errors.Errorf("reverting plan %s: %w", args[0], err)
			}
			return nil
		},
	}
}
