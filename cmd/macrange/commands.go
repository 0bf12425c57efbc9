package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/jiayi-1994/zstack-macpool/pkg/logging"
	"github.com/jiayi-1994/zstack-macpool/pkg/macrange"
	"github.com/jiayi-1994/zstack-macpool/pkg/types"
)

var errNeedSocket = errors.New("this command requires --socket")

func rangeFlags(start, end *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "start",
			Usage:       "First `MAC` of the range.",
			Destination: start,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "end",
			Usage:       "Last `MAC` of the range.",
			Destination: end,
			Required:    true,
		},
	}
}

func init() {
	var start, end string
	var limit int
	defineCommand(&cli.Command{
		Name:  "generate",
		Usage: "List the unicast addresses of a range in ascending order.",
		Flags: append(rangeFlags(&start, &end),
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "Maximum `number` of addresses; 0 still lists one.",
				Value:       types.DefaultPreviewLimit,
				Destination: &limit,
			},
		),
		Action: func(c *cli.Context) (e error) {
			var macs []string
			if client != nil {
				macs, e = client.Generate(c.Context, start, end, limit)
			} else {
				macs, e = macrange.Generate(start, end, limit)
			}
			if e != nil {
				return e
			}
			logging.FromContext(c.Context).Debug("generated", "start", start, "end", end, "limit", limit, "count", len(macs))
			for _, mac := range macs {
				fmt.Fprintln(c.App.Writer, mac)
			}
			return nil
		},
	})
}

func init() {
	var start, end string
	defineCommand(&cli.Command{
		Name:  "validate",
		Usage: "Check that a range holds at least one unicast address.",
		Flags: rangeFlags(&start, &end),
		Action: func(c *cli.Context) error {
			var valid bool
			if client != nil {
				resp, e := client.Validate(c.Context, start, end)
				if e != nil {
					return e
				}
				valid = resp.Valid
			} else {
				valid = macrange.IsValid(start, end)
			}

			if !valid {
				return cli.Exit(fmt.Sprintf("invalid: %s-%s has no unicast address", start, end), 1)
			}
			fmt.Fprintln(c.App.Writer, "valid")
			return nil
		},
	})
}

func init() {
	defineCommand(&cli.Command{
		Name:      "format",
		Usage:     "Print a MAC address in canonical form.",
		ArgsUsage: "HEX",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return errors.New("format takes exactly one address")
			}
			addr, e := macrange.Parse(c.Args().First())
			if e != nil {
				return e
			}

			mac := macrange.Format(addr)
			if client != nil {
				if mac, e = client.Format(c.Context, addr); e != nil {
					return e
				}
			}
			fmt.Fprintln(c.App.Writer, mac)
			return nil
		},
	})
}

func init() {
	var start, end string
	defineCommand(&cli.Command{
		Name:  "count",
		Usage: "Count the unicast addresses of a range without listing them.",
		Flags: rangeFlags(&start, &end),
		Action: func(c *cli.Context) error {
			if client != nil {
				resp, e := client.Validate(c.Context, start, end)
				if e != nil {
					return e
				}
				fmt.Fprintln(c.App.Writer, resp.Usable)
				return nil
			}

			r, e := macrange.ParseRange(start, end)
			if e != nil {
				return e
			}
			fmt.Fprintln(c.App.Writer, r.UsableCount())
			return nil
		},
	})
}

func init() {
	var pool, mac string
	defineCommand(&cli.Command{
		Name:  "allocate",
		Usage: "Allocate an address from a pool of the pool service.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "pool",
				Usage:       "Pool `name`.",
				Value:       types.DefaultPoolName,
				Destination: &pool,
			},
			&cli.StringFlag{
				Name:        "mac",
				Usage:       "Specific `MAC` to allocate; the lowest free one when empty.",
				Destination: &mac,
			},
		},
		Action: func(c *cli.Context) error {
			if client == nil {
				return errNeedSocket
			}
			allocated, e := client.Allocate(c.Context, pool, mac)
			if e != nil {
				return e
			}
			fmt.Fprintln(c.App.Writer, allocated)
			return nil
		},
	})
}

func init() {
	var pool, mac string
	defineCommand(&cli.Command{
		Name:  "release",
		Usage: "Return an address to a pool of the pool service.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "pool",
				Usage:       "Pool `name`.",
				Value:       types.DefaultPoolName,
				Destination: &pool,
			},
			&cli.StringFlag{
				Name:        "mac",
				Usage:       "`MAC` to release.",
				Destination: &mac,
				Required:    true,
			},
		},
		Action: func(c *cli.Context) error {
			if client == nil {
				return errNeedSocket
			}
			return client.Release(c.Context, pool, mac)
		},
	})
}
