package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/elrelease/internal"
	pkgconfig "github.com/starford/elrelease/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

const defaultConfigFile = ".elrelease.yaml"

func action(command internal.Command, takesVersion bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		root := cmd.String("root")
		configPath := cmd.String("config")
		if !cmd.IsSet("config") && !filepath.IsAbs(configPath) {
			configPath = filepath.Join(root, configPath)
		}

		cfg := internal.NewDefaultConfig()
		if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithCommand(command),
			internal.WithRoot(root),
			internal.WithNoCommit(cmd.Bool("no-commit")),
			internal.WithYes(cmd.Bool("yes")),
		}
		if takesVersion {
			opts = append(opts, internal.WithVersion(cmd.Args().First()))
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "elrelease",
		Usage: "Prepare releases of Emacs Lisp packages: changelog, versions, copyright",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("ELRELEASE_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"C"},
				Usage:   "Project root",
				Value:   ".",
			},
			&cli.BoolFlag{
				Name:  "no-commit",
				Usage: "Leave the changes uncommitted",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Answer every question with yes or its default",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "release",
				Usage:     "Date the changelog, set VERSION everywhere and commit",
				ArgsUsage: "[VERSION]",
				Action:    action(internal.CommandRelease, true),
			},
			{
				Name:      "resume",
				Usage:     "Start development after a release",
				ArgsUsage: "[NEXT-VERSION]",
				Action:    action(internal.CommandResume, true),
			},
			{
				Name:   "copyright",
				Usage:  "Extend copyright notices to the current year",
				Action: action(internal.CommandCopyright, false),
			},
			{
				Name:   "status",
				Usage:  "Show the version each file declares",
				Action: action(internal.CommandStatus, false),
			},
			{
				Name:   "history",
				Usage:  "List recorded release runs",
				Action: action(internal.CommandHistory, false),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
