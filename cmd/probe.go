package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ligopivot/probe"
)

type probeCmdConfig struct {
	count      int
	timeout    time.Duration
	privileged bool
}

// Defaults for probe command.
// See root command for shared defaults.
var probeCmdArgs = probeCmdConfig{
	count:      3,
	timeout:    5 * time.Second,
	privileged: false,
}

// Add command and set flags.
func init() {
	// Usage info.
	cmd := &cobra.Command{
		Use:   "probe <ip>",
		Short: "Ping a host through the pivot",
		Long:  `Check that a host inside a configured range is routed through the tunnel interface and answers ICMP echo requests`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			probeCmdArgs.Run(cmd, args[0])
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().IntVarP(&probeCmdArgs.count, "count", "n", probeCmdArgs.count, "number of echo requests")
	cmd.Flags().DurationVarP(&probeCmdArgs.timeout, "timeout", "t", probeCmdArgs.timeout, "time to wait for replies")
	cmd.Flags().BoolVarP(&probeCmdArgs.privileged, "privileged", "", probeCmdArgs.privileged, "use a raw ICMP socket, requires root")

	cmd.Flags().SortFlags = false
}

// Run probes target and prints the result.
func (c probeCmdConfig) Run(cmd *cobra.Command, target string) {
	p, err := probe.New(probe.Config{
		Settings:  loadSettings(),
		Interface: Interface,
		Pinger: probe.ICMPPinger{
			Count:      c.count,
			Timeout:    c.timeout,
			Privileged: c.privileged,
		},
		Notifier: newNotifier(),
		Log:      log,
	})
	check("failed to set up probe", err)

	report, err := p.Probe(cmd.Context(), target)
	exitOnError(err)

	res := report.Result
	status := GreenBold("response:")
	if res.Received == 0 {
		status = RedBold("no response:")
	}
	fmt.Fprintf(color.Output, "%s %s\n", status, Green(fmt.Sprintf("%d/%d received", res.Received, res.Sent)))
	fmt.Fprintf(color.Output, "  %s: %v\n", WhiteBold("from"), report.Addr)
	fmt.Fprintf(color.Output, "  %s: %v\n", WhiteBold("range"), report.Range)
	if report.Interface != "" {
		fmt.Fprintf(color.Output, "  %s: %v\n", WhiteBold("via"), report.Interface)
	}
	fmt.Fprintf(color.Output, "  %s: %.1f%%\n", WhiteBold("loss"), res.Loss)
	if res.Received > 0 {
		fmt.Fprintf(color.Output, "  %s: %f %s\n", WhiteBold("time"), float64(res.AvgRtt)/float64(time.Millisecond), Cyan("milliseconds"))
	}
	if res.Received == 0 {
		exitOnError(fmt.Errorf("no reply from %s", report.Addr))
	}
}
