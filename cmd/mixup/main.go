// Command mixup runs annotation projects: it parses mixup programs, runs
// them over a text corpus and writes the resulting labels out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mixuplang/mixup/annotator"
	"github.com/mixuplang/mixup/export"
	"github.com/mixuplang/mixup/generator"
	"github.com/mixuplang/mixup/parser/grammar"
	"github.com/mixuplang/mixup/project"
	"github.com/mixuplang/mixup/watch"
)

const version = "0.1.0"

var (
	flagConfig  string
	flagOutput  string
	flagVerbose bool
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "mixup: internal error: %v\n", r)
			os.Exit(2)
		}
	}()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mixup: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mixup",
		Short:         "Run mixup annotation programs over a text corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", project.ConfigFile, "project config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every statement evaluated")

	root.AddCommand(runCmd(), parseCmd(), initCmd(), genCmd(), packCmd(), watchCmd(), versionCmd())
	return root
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runProject() error {
	cfg, err := project.LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	st, err := project.Run(cfg, logger())
	if err != nil {
		return err
	}
	out := cfg.Output
	if flagOutput != "" {
		out = flagOutput
	}
	if out == "" {
		export.Print(os.Stdout, st)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.Capture(st).WriteYAML(f)
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the project's programs and write the label snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject()
		},
	}
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "snapshot path (overrides config; empty config output prints to stdout)")
	return cmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a program and print its normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := grammar.ParseFile(args[0])
			if err != nil {
				return err
			}
			fmt.Print(prog.String())
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init NAME",
		Short: "Scaffold a new annotation project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := project.Init(args[0]); err != nil {
				return err
			}
			fmt.Printf("Project %s created\n", args[0])
			return nil
		},
	}
}

func genCmd() *cobra.Command {
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Scaffold program or dictionary files",
	}
	gen.AddCommand(
		&cobra.Command{
			Use:   "program NAME",
			Short: "Scaffold an extraction program",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return generator.GenerateProgram(args[0])
			},
		},
		&cobra.Command{
			Use:   "dict NAME [WORD...]",
			Short: "Scaffold a dictionary file and its labeling program",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return generator.GenerateDictionary(args[0], args[1:])
			},
		},
	)
	return gen
}

func packCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "pack FILE",
		Short: "Compile a program into a reusable annotator artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := grammar.ParseFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), annotator.SourceExt)
			}
			out := flagOutput
			if out == "" {
				out = name + annotator.ArtifactExt
			}
			if err := annotator.New(name, prog).Save(out); err != nil {
				return err
			}
			fmt.Printf("Annotator %s written to %s\n", name, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "annotator name (defaults to the file basename)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "artifact path")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run the project whenever its files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := project.LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			log := logger()
			if err := runProject(); err != nil {
				log.Error("initial run failed", "error", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			dirs := append([]string{cfg.Corpus, "."}, cfg.Annotators...)
			log.Info("watching for changes", "dirs", dirs)
			return watch.Watch(ctx, dirs, log, runProject)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mixup version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("mixup " + version)
		},
	}
}
