package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/redhat-data-and-ai/hookbot/internal/hooks"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
)

func hookCommand() *cli.Command {
	return &cli.Command{
		Name:  "hook",
		Usage: "Manage GitLab project hooks",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a project hook that posts into a room",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "project",
						Aliases:  []string{"p"},
						Usage:    "GitLab project `ID` or full path",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "room",
						Aliases:  []string{"r"},
						Usage:    "Matrix room `ID` to post into",
						Required: true,
					},
				},
				Action: hookAddAction,
			},
		},
	}
}

func hookAddAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logging.InitLogger(cfg.LogLevel, "hookbot-cli")
	defer logging.GetLogger().Sync()

	if err := cfg.ValidateHookRegistration(); err != nil {
		return err
	}

	bindings, err := store.OpenPostgres(c.Context, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer bindings.Close()

	registrar, err := hooks.NewRegistrar(cfg, bindings)
	if err != nil {
		return err
	}

	reg, err := registrar.Register(c.Context, c.String("project"), c.String("room"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Registered hook %d on %s\n", reg.HookID, reg.Binding.Project)
	fmt.Fprintf(c.App.Writer, "  url:  %s\n", reg.URL)
	fmt.Fprintf(c.App.Writer, "  room: %s\n", reg.Binding.Room)
	return nil
}
