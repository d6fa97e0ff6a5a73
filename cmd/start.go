package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ligopivot/session"
)

type startCmdConfig struct {
	writeToClipboard bool
}

// Defaults for start command.
// See root command for shared defaults.
var startCmdArgs = startCmdConfig{
	writeToClipboard: false,
}

// Add command and set flags.
func init() {
	// Usage info.
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ligolo server",
		Long:  `Create the tunnel interface, route every configured range through it and run the ligolo-ng proxy in a tmux session`,
		Run: func(cmd *cobra.Command, args []string) {
			startCmdArgs.Run(cmd)
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().BoolVarP(&startCmdArgs.writeToClipboard, "clipboard", "", startCmdArgs.writeToClipboard, "copy the tmux attach command to clipboard")

	cmd.Flags().SortFlags = false
}

// Run brings up the interface, routes and proxy session.
func (c startCmdConfig) Run(cmd *cobra.Command) {
	core := newCore()

	err := core.supervisor.Start(cmd.Context())

	// The session may be up even when some routes failed.
	if c.writeToClipboard && core.supervisor.IsRunning(cmd.Context()) {
		attach := session.AttachCommand(core.supervisor.Name())
		if cerr := clipboard.WriteAll(attach); cerr != nil {
			fmt.Fprintf(color.Output, "%s %s\n", RedBold("clipboard:"), Red(fmt.Sprintf("error copying to clipboard: %v", cerr)))
		} else {
			fmt.Fprintf(color.Output, "%s %s\n", GreenBold("clipboard:"), Green("successfully copied"))
		}
	}

	exitOnError(err)
}
