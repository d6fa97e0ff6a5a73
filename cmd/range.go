package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ligopivot/fault"
	"ligopivot/notify"
	"ligopivot/settings"
)

// rangeCmd groups the range subcommands.
var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Manage routed CIDR ranges",
	Long:  `Add, remove and list the CIDR ranges routed through the tunnel interface`,
}

// Add commands and set flags.
func init() {
	rootCmd.AddCommand(rangeCmd)

	rangeCmd.AddCommand(&cobra.Command{
		Use:     "add <cidr>",
		Short:   "Add a CIDR range",
		Long:    `Save a CIDR range and route it through the tunnel right away if the ligolo server is running`,
		Example: "  ligopivot range add 192.168.1.0/24",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			core := newCore()
			err := core.supervisor.AddRange(cmd.Context(), args[0])
			if err == nil {
				notify.Infof(core.notifier, "range", "added %s", args[0])
			}
			exitOnError(err)
		},
	})

	rangeCmd.AddCommand(&cobra.Command{
		Use:     "remove <position>",
		Aliases: []string{"rm"},
		Short:   "Remove a CIDR range",
		Long:    `Remove the CIDR range at the position shown by "range list" and withdraw its route if the ligolo server is running`,
		Example: "  ligopivot range remove 2",
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			core := newCore()
			pos, err := strconv.Atoi(args[0])
			if err != nil {
				err = fault.Validation("position", args[0], "not a number")
				notify.Err(core.notifier, err)
				exitOnError(err)
			}

			var cursor settings.Cursor
			cursor.Select(pos)
			err = core.supervisor.RemoveSelected(cmd.Context(), &cursor)
			if err == nil {
				notify.Infof(core.notifier, "range", "removed position %d", pos)
			}
			exitOnError(err)
		},
	})

	rangeCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List CIDR ranges",
		Long:    `List saved CIDR ranges with the positions used by "range remove"`,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printRanges(color.Output, loadSettings())
		},
	})
}

// printRanges writes the 1-based numbered range list.
func printRanges(w io.Writer, s *settings.Settings) {
	ranges := s.GetRanges()
	if len(ranges) == 0 {
		fmt.Fprintf(w, "%s %s\n", WhiteBold("ranges:"), Cyan("none, add one with `range add`"))
		return
	}
	fmt.Fprintln(w, WhiteBold("ranges:"))
	for i, r := range ranges {
		fmt.Fprintf(w, "  %s %s\n", Cyan(fmt.Sprintf("%d.", i+1)), Green(r))
	}
}
