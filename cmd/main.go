package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
)

const version = "1.0.0"

func newApp() *cli.App {
	return &cli.App{
		Name:    "hookbot",
		Usage:   "Relay GitLab webhooks into Matrix rooms",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (environment variables still win)",
			},
		},
		// serving is the default when no command is given
		Action: serveAction,
		Commands: []*cli.Command{
			serveCommand(),
			hookCommand(),
		},
	}
}

// loadConfig reads the YAML file named by --config or HOOKBOT_CONFIG, if
// any, then the environment
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.LoadFromEnvironment()
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
