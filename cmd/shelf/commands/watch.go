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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/engine"
	"github.com/walteh/shelf/pkg/log"
	"github.com/walteh/shelf/pkg/monitor"
	"github.com/walteh/shelf/pkg/monitor/fswatch"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// NewWatchCmd creates the watch command
func NewWatchCmd(o *opts.RootOpts) *cobra.Command {
	var autoApply bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the source folder and plan changes as they settle",
		Long: `Watch follows the source folder and, once changes have been quiet for
the debounce window, plans only the groups they touched. With auto apply
enabled the plan is carried out straight away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)
			console := log.FromContext(ctx)

			if cmd.Flags().Changed("auto-apply") {
				o.Config.Monitor.AutoApply = autoApply
				ecfg, err := o.Config.Engine()
				if err != nil {
					return errors.Errorf("building engine config: %w", err)
				}
				if o.Engine, err = engine.New(ctx, ecfg, o.Journal); err != nil {
					return errors.Errorf("creating engine: %w", err)
				}
			}

			mcfg, err := o.Config.MonitorConfig()
			if err != nil {
				return errors.Errorf("monitor config: %w", err)
			}

			if err := o.Engine.Scan(ctx); err != nil {
				return errors.Errorf("initial scan: %w", err)
			}

			mon, err := monitor.New(mcfg, o.Engine.MonitorHandler(func(res *engine.EventResult) {
				logger.Debug().Int("updated", res.Updated).Int("removed", res.Removed).Msg("pass finished")
				if res.Applied != nil {
					console.ApplySummary(ctx, *res.Applied)
					return
				}
				if res.Plan != nil && res.Plan.MoveCount() > 0 {
					console.Plan(ctx, res.Plan)
				}
			}))
			if err != nil {
				return errors.Errorf("creating monitor: %w", err)
			}

			target := o.Config.Target
			watcher, err := fswatch.New(ctx, o.Config.Source, fswatch.WithSkip(func(path string) bool {
				return path == target
			}))
			if err != nil {
				return errors.Errorf("watching %s: %w", o.Config.Source, err)
			}
			defer watcher.Close()

			console.Header("watching " + o.Config.Source)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return mon.Run(gctx) })
			g.Go(func() error { return watcher.Run(gctx, mon) })
			if err := g.Wait(); err != nil {
				return errors.Errorf("watching: %w", err)
			}

			stats := mon.Stats()
			logger.Info().Int("events", stats.Events).Int("passes", stats.Passes).Int("failed", stats.Failed).Msg("stopped watching")
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApply, "auto-apply", false, "apply each plan as soon as it is built")
	return cmd
}
