// Package command wires the urfave/cli application that is the repo's
// entrypoint (C0): resolve the config file, then either run the full
// pipeline or one of the interactive introspection subcommands.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/shift-devs/twitch-gamepad/internal/config"
)

// Deps holds every injected function so tests can run BuildApp without
// touching the real filesystem, database, or chat transport.
type Deps struct {
	FindConfig   func(dir string) (string, error)
	LoadConfig   func(path string) (config.Config, error)
	RunServe     func(ctx context.Context, cfg config.Config, configPath string) error
	RunMigrateUp func(ctx context.Context, cfg config.Config, configPath string) error
	PrintMode    func(ctx context.Context, cfg config.Config, configPath string) (string, error)
	SetCooldown  func(ctx context.Context, cfg config.Config, configPath string, seconds int) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "twitchgamepad",
		Usage: "chat-controlled virtual gamepad bridge",
		Action: func(ctx *cli.Context) error {
			cfgPath, cfg, err := resolveConfig(deps, ctx)
			if err != nil {
				return err
			}
			return runServe(ctx.Context, deps, cfg, cfgPath)
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply the state store schema",
						Action: func(ctx *cli.Context) error {
							cfgPath, cfg, err := resolveConfig(deps, ctx)
							if err != nil {
								return err
							}
							return runMigrateUp(ctx.Context, deps, cfg, cfgPath)
						},
					},
				},
			},
			{
				Name:  "mode",
				Usage: "print the current anarchy mode",
				Action: func(ctx *cli.Context) error {
					cfgPath, cfg, err := resolveConfig(deps, ctx)
					if err != nil {
						return err
					}
					mode, err := printMode(ctx.Context, deps, cfg, cfgPath)
					if err != nil {
						return err
					}
					fmt.Fprintln(ctx.App.Writer, mode)
					return nil
				},
			},
			{
				Name:  "cooldown",
				Usage: "set the movement cooldown, in seconds",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() != 1 {
						return errors.New("expected exactly one argument: seconds")
					}
					seconds, err := strconv.Atoi(ctx.Args().First())
					if err != nil {
						return fmt.Errorf("invalid seconds: %w", err)
					}
					wd, err := os.Getwd()
					if err != nil {
						return err
					}
					cfgPath, cfg, err := resolveConfigIn(deps, wd)
					if err != nil {
						return err
					}
					return setCooldown(ctx.Context, deps, cfg, cfgPath, seconds)
				},
			},
		},
	}
}

// resolveConfig reads an optional positional config-path argument;
// when absent it walks parent directories from the working directory.
func resolveConfig(deps Deps, ctx *cli.Context) (string, config.Config, error) {
	if ctx.Args().Len() > 0 {
		path := strings.TrimSpace(ctx.Args().First())
		cfg, err := loadConfig(deps, path)
		return path, cfg, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", config.Config{}, err
	}
	return resolveConfigIn(deps, wd)
}

func resolveConfigIn(deps Deps, dir string) (string, config.Config, error) {
	path, err := findConfig(deps, dir)
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := loadConfig(deps, path)
	return path, cfg, err
}

func findConfig(deps Deps, dir string) (string, error) {
	if deps.FindConfig != nil {
		return deps.FindConfig(dir)
	}
	return config.FindConfigFile(dir)
}

func loadConfig(deps Deps, path string) (config.Config, error) {
	if deps.LoadConfig != nil {
		return deps.LoadConfig(path)
	}
	return config.Load(path)
}

func runServe(ctx context.Context, deps Deps, cfg config.Config, configPath string) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg, configPath)
}

func runMigrateUp(ctx context.Context, deps Deps, cfg config.Config, configPath string) error {
	if deps.RunMigrateUp == nil {
		return errors.New("migrate runner is not configured")
	}
	return deps.RunMigrateUp(ctx, cfg, configPath)
}

func printMode(ctx context.Context, deps Deps, cfg config.Config, configPath string) (string, error) {
	if deps.PrintMode == nil {
		return "", errors.New("mode introspection is not configured")
	}
	return deps.PrintMode(ctx, cfg, configPath)
}

func setCooldown(ctx context.Context, deps Deps, cfg config.Config, configPath string, seconds int) error {
	if deps.SetCooldown == nil {
		return errors.New("cooldown introspection is not configured")
	}
	return deps.SetCooldown(ctx, cfg, configPath, seconds)
}
