package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/go-drift/fiber/pkg/lanes"
)

const maskKey = "mask"

func lanesCommand() *cli.Command {
	return &cli.Command{
		Name:  "lanes",
		Usage: "Print the lane table, or decode a lane mask",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  maskKey,
				Usage: "Only show the lanes in this mask (decimal, 0x hex or 0b binary)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			mask := lanes.Lanes(1<<lanes.TotalLanes - 1)
			if s := cmd.String(maskKey); s != "" {
				v, err := strconv.ParseUint(s, 0, 32)
				if err != nil {
					return fmt.Errorf("--%s: %w", maskKey, err)
				}
				mask = lanes.Lanes(v)
				fmt.Fprintf(os.Stdout, "%v (%d lanes, %v priority)\n", mask, lanes.Count(mask), lanes.LanesToEventPriority(mask))
			}
			printLanes(os.Stdout, mask)
			return nil
		},
	}
}

func printLanes(w io.Writer, mask lanes.Lanes) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"index", "lane", "mask", "event priority", "expires after"})
	lanes.ForEach(mask, func(index int, lane lanes.Lane) {
		expires := "never"
		if t := lanes.ComputeExpirationTime(lane, 0); t != lanes.NoTimestamp {
			expires = t.String()
		}
		tbl.Append([]string{
			strconv.Itoa(index),
			lanes.Name(index),
			fmt.Sprintf("%#08x", uint32(lane)),
			lanes.LanesToEventPriority(lane).String(),
			expires,
		})
	})
	tbl.Render()
}
