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
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(o *opts.RootOpts) *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List applied plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			if show != "" {
				p, err := o.Engine.Plan(ctx, show)
				if err != nil {
					return errors.Errorf("loading plan %s: %w", show, err)
				}
				console.Plan(ctx, p)
				return nil
			}

			plans, err := o.Engine.History(ctx)
			if err != nil {
				return errors.Errorf("listing plans: %w", err)
			}
			if len(plans) == 0 {
				console.Info("no plans applied yet")
				return nil
			}
			console.History(plans, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "print the entries of one plan")
	return cmd
}
