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


package main

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/shelf/cmd/shelf/commands"
	"github.com/walteh/shelf/cmd/shelf/opts"
	"github.com/walteh/shelf/pkg/config"
	"github.com/walteh/shelf/pkg/log"
)

// commands that run without a config or journal
var standalone = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

// newRootCmd wires every subcommand around shared options. stdout receives
// the human output, stderr the structured logs.
func newRootCmd(o *opts.RootOpts, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "shelf",
		Short: "Organize a messy folder into a tidy hierarchy",
		Long: `shelf scans a source folder, keeps related files together, sorts them
into categories and moves them into a target folder. Every applied plan is
journaled and can be reverted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging(cmd.Context(), o.Debug, stderr)
			ctx = log.NewContext(ctx, log.New(stdout))
			cmd.SetContext(ctx)

			if standalone[cmd.Name()] {
				return nil
			}
			return o.Open(ctx)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.Close()
		},
	}

	addRootFlags(root, o)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		commands.NewPreviewCmd(o),
		commands.NewApplyCmd(o),
		commands.NewRevertCmd(o),
		commands.NewRecommendCmd(o),
		commands.NewWatchCmd(o),
		commands.NewHistoryCmd(o),
		newVersionCmd(),
	)
	return root
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", config.DefaultPath(), "config file path")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&o.Source, "source", "", "folder to organize, overrides the config")
	cmd.PersistentFlags().StringVar(&o.Target, "target", "", "folder to organize into, overrides the config")
}

// setupLogging configures zerolog based on flags
func setupLogging(ctx context.Context, debug bool, w io.Writer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger.WithContext(ctx)
}
