package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ligopivot/launcher"
)

type connectCmdConfig struct {
	stagingDir       string
	writeToClipboard bool
}

// Defaults for connect command.
// See root command for shared defaults.
var connectCmdArgs = connectCmdConfig{
	stagingDir:       launcher.DefaultStagingDir,
	writeToClipboard: false,
}

// Add command and set flags.
func init() {
	// Usage info.
	cmd := &cobra.Command{
		Use:   "connect <demon-id> [params...]",
		Short: "Connect a demon back to the ligolo server",
		Long:  `Render the Havoc console commands that upload the ligolo-ng agent to a demon and connect it back to the running ligolo server. Nothing is sent to the demon; paste the commands into its console.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			connectCmdArgs.Run(cmd, args[0])
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&connectCmdArgs.stagingDir, "staging-dir", "", connectCmdArgs.stagingDir, "directory on the demon host the agent is uploaded to")
	cmd.Flags().BoolVarP(&connectCmdArgs.writeToClipboard, "clipboard", "", connectCmdArgs.writeToClipboard, "copy the demon commands to clipboard")

	cmd.Flags().SortFlags = false
}

// Run renders the console commands for the demon. Extra parameters are accepted and ignored.
func (c connectCmdConfig) Run(cmd *cobra.Command, demon string) {
	core := newCore()

	l, err := launcher.New(launcher.Config{
		Tasker:     launcher.NewConsoleTasker(color.Output, c.writeToClipboard),
		Liveness:   core.supervisor,
		Settings:   core.settings,
		Notifier:   core.notifier,
		AgentBin:   binPath(AgentBin),
		StagingDir: c.stagingDir,
		Log:        log,
	})
	check("failed to set up launcher", err)

	_, err = l.Launch(cmd.Context(), demon)
	exitOnError(err)
}
