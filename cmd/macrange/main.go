// Command macrange enumerates and validates MAC address ranges.
//
// By default every command is computed locally. With --socket, requests are
// sent to the pool service of macpool-controller instead, which also enables
// the allocate and release commands.
//
// Usage:
//
//	macrange generate --start 00:1a:4a:16:01:00 --end 00:1a:4a:16:01:ff --limit 10
//	macrange validate --start 01:00:00:00:00:00 --end 01:00:00:00:00:00
//	macrange format 001a4a160100
//	macrange count --start 00:00:00:00:00:00 --end ff:ff:ff:ff:ff:ff
//	macrange --socket /var/run/zstack-macpool/macpool.sock allocate --pool default
package main

import (
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/jiayi-1994/zstack-macpool/pkg/config"
	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/server"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

// client is set when --socket is given
var client *server.Client

var app = &cli.App{
	Name:  types.CLIName,
	Usage: "Enumerate and validate MAC address ranges.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "Pool service Unix `socket`; compute locally when empty.",
			EnvVars: []string{types.EnvPrefix + "SOCKET_PATH"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   logging.LevelWarn,
			Usage:   "Log `level`: debug, info, warn, error.",
			EnvVars: []string{types.EnvPrefix + "LOG_LEVEL"},
		},
	},
	Before: func(c *cli.Context) error {
		opts := logging.DefaultOptions()
		opts.Format = logging.FormatText
		opts.OutputPath = logging.OutputStderr
		if e := logging.InitGlobalLogger(opts); e != nil {
			return e
		}
		if e := logging.SetGlobalLogLevel(c.String("log-level")); e != nil {
			return e
		}
		log := logging.LoggerForCLI(types.CLIName)
		c.Context = logging.IntoContext(c.Context, log)

		client = nil
		if socket := c.String("socket"); socket != "" {
			cfg := config.DefaultConfig()
			cfg.ApplyEnvOverrides()
			client = server.NewClient(socket, cfg.Client)
			log.Debug("using pool service", "socket", socket)
		}
		return nil
	},
}

func defineCommand(command *cli.Command) {
	app.Commands = append(app.Commands, command)
}

func main() {
	sort.Sort(cli.CommandsByName(app.Commands))
	if e := app.Run(os.Args); e != nil {
		logging.L().Error(e, "command failed")
		os.Exit(1)
	}
}
