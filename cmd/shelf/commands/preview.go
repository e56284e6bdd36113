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

// NewPreviewCmd creates the preview command
func NewPreviewCmd(o *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show where every file would go",
		Long: `Preview scans the source folder, groups related files, classifies them
and prints the resulting plan. Nothing is moved and nothing is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			console := log.FromContext(ctx)

			p, err := o.Engine.Preview(ctx)
			if err != nil {
				return errors.Errorf("previewing: %w", err)
			}

			console.Header("previewing " + o.Config.Source)
			console.Plan(ctx, p)
			return nil
		},
	}
}
