package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ligopivot/notify"
	"ligopivot/settings"
)

type settingsSetCmdConfig struct {
	addr        string
	port        string
	admin       bool
	toggleAdmin bool
	certFile    string
	keyFile     string
}

// Defaults for settings set command.
// See root command for shared defaults.
var settingsSetCmdArgs = settingsSetCmdConfig{
	addr:     settings.DefaultAddress,
	port:     settings.DefaultPort,
	certFile: settings.None,
	keyFile:  settings.None,
}

// settingsCmd groups the settings subcommands.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change listener settings",
	Long:  `Show or change the ligolo server listener settings saved in the settings file`,
}

// Add commands and set flags.
func init() {
	rootCmd.AddCommand(settingsCmd)

	setCmd := &cobra.Command{
		Use:     "set",
		Short:   "Change listener settings",
		Long:    `Change listener settings and save them. Only the given flags are changed. Values overridden by LIGOPIVOT_ environment variables are not written to the file unless set here.`,
		Example: "  ligopivot settings set --ip 10.0.0.5 --port 11601\n  ligopivot settings set --certfile /a.pem --keyfile /a.key",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			settingsSetCmdArgs.Run(cmd)
		},
	}
	settingsCmd.AddCommand(setCmd)

	setCmd.Flags().StringVarP(&settingsSetCmdArgs.addr, "ip", "i", settingsSetCmdArgs.addr, "listener IP address agents connect back to")
	setCmd.Flags().StringVarP(&settingsSetCmdArgs.port, "port", "p", settingsSetCmdArgs.port, "listener port")
	setCmd.Flags().BoolVarP(&settingsSetCmdArgs.admin, "admin", "a", settingsSetCmdArgs.admin, "run the proxy with sudo")
	setCmd.Flags().BoolVarP(&settingsSetCmdArgs.toggleAdmin, "toggle-admin", "", settingsSetCmdArgs.toggleAdmin, "flip the admin setting")
	setCmd.Flags().StringVarP(&settingsSetCmdArgs.certFile, "certfile", "", settingsSetCmdArgs.certFile, "TLS certificate for the proxy, \"none\" for a self-signed one")
	setCmd.Flags().StringVarP(&settingsSetCmdArgs.keyFile, "keyfile", "", settingsSetCmdArgs.keyFile, "TLS key for the proxy, \"none\" for a self-signed one")

	setCmd.MarkFlagsMutuallyExclusive("admin", "toggle-admin")
	setCmd.Flags().SortFlags = false

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show listener settings",
		Long:  `Show the listener settings and ranges from the settings file`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printSettings(color.Output, ConfigFile, loadSettings())
		},
	})
}

// Run applies the changed flags and saves the settings file.
func (c settingsSetCmdConfig) Run(cmd *cobra.Command) {
	s := loadSettings()
	n := newNotifier()

	err := c.apply(s, cmd.Flags().Changed)
	if err == nil {
		err = s.Save(ConfigFile)
	}
	notify.Err(n, err)
	exitOnError(err)

	notify.Infof(n, "settings", "saved to %s", ConfigFile)
	printSettings(color.Output, ConfigFile, s)
}

// apply sets every field whose flag changed. Invalid values are collected
// and leave their field untouched.
func (c settingsSetCmdConfig) apply(s *settings.Settings, changed func(string) bool) error {
	var errs []error
	if changed("ip") {
		errs = append(errs, s.SetListenerAddress(c.addr))
	}
	if changed("port") {
		errs = append(errs, s.SetListenerPort(c.port))
	}
	if changed("admin") {
		s.SetAdmin(c.admin)
	}
	if changed("toggle-admin") && c.toggleAdmin {
		s.ToggleAdmin()
	}
	if changed("certfile") {
		s.SetCertFile(c.certFile)
	}
	if changed("keyfile") {
		s.SetKeyFile(c.keyFile)
	}
	return errors.Join(errs...)
}

func printSettings(w io.Writer, path string, s *settings.Settings) {
	fmt.Fprintf(w, "%s %s\n", GreenBold("config:"), Green(path))
	fmt.Fprintln(w, Green(strings.Repeat("─", 32)))
	fmt.Fprintf(w, "%s %s\n", WhiteBold(" listener:"), s.GetListenerEndpoint())
	fmt.Fprintf(w, "%s %v\n", WhiteBold("    admin:"), s.GetAdmin())
	fmt.Fprintf(w, "%s %s\n", WhiteBold(" certfile:"), s.GetCertFile())
	fmt.Fprintf(w, "%s %s\n", WhiteBold("  keyfile:"), s.GetKeyFile())
	fmt.Fprintf(w, "%s %s\n", WhiteBold("   ranges:"), strings.Join(s.GetRanges(), ", "))
	fmt.Fprintln(w, Green(strings.Repeat("─", 32)))
}
