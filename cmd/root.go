// Package cmd handles command line arguments.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ligopivot/escalate"
	"ligopivot/netif"
	"ligopivot/notify"
	"ligopivot/session"
	"ligopivot/settings"
	"ligopivot/shell"
)

// Defaults shared by multiple commands.
var (
	Version     = "v0.0.0"
	ConfigFile  = "ligopivot.json"
	Escalation  = "auto"
	InstallDir  = "."
	ProxyBin    = filepath.Join("ligolo-ng", "proxy")
	AgentBin    = filepath.Join("ligolo-ng", "agent.exe")
	Interface   = netif.DefaultInterface
	SessionName = session.DefaultName
	Quiet       = false
	Debug       = false
	ShowHidden  = false
)

// Define colors.
var (
	Green     = color.New(color.FgGreen).SprintFunc()
	GreenBold = color.New(color.FgGreen, color.Bold).SprintFunc()
	Red       = color.New(color.FgRed).SprintFunc()
	RedBold   = color.New(color.FgRed, color.Bold).SprintFunc()
	WhiteBold = color.New(color.FgWhite, color.Bold).SprintFunc()
	Cyan      = color.New(color.FgCyan).SprintFunc()
)

// hiddenFlags are only listed in help output with --show-hidden.
var hiddenFlags = []string{"install-dir", "proxy-bin", "agent-bin", "interface", "session"}

// Root ligopivot command, doesn't do much on its own.
// Prints help by default.
var rootCmd = &cobra.Command{
	Use:   "ligopivot",
	Short: "Pivot into target networks with ligolo-ng",
	Long:  `Set up the ligolo-ng tunnel interface and routes, run the proxy in tmux and render the Havoc console commands that connect demons back`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			err := cmd.Help()
			if err != nil {
				fmt.Println("Failed to print help:", err)
			}
			os.Exit(0)
		}
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// log carries diagnostics. Operator messages go through a notify.Notifier.
var log = logrus.New()

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ConfigFile, "config", "c", ConfigFile, "settings file to read and write")
	flags.BoolVarP(&Quiet, "quiet", "q", Quiet, "only print messages that need action")
	flags.BoolVarP(&Debug, "debug", "d", Debug, "log every external command")
	flags.StringVarP(&Escalation, "escalation", "e", Escalation, "privilege escalation wrapper: auto, kdesu, pkexec or direct")
	flags.BoolVarP(&ShowHidden, "show-hidden", "", ShowHidden, "show hidden flag options")

	flags.StringVarP(&InstallDir, "install-dir", "", InstallDir, "directory the ligolo-ng binaries are installed under")
	flags.StringVarP(&ProxyBin, "proxy-bin", "", ProxyBin, "ligolo-ng proxy binary, relative to the install dir")
	flags.StringVarP(&AgentBin, "agent-bin", "", AgentBin, "ligolo-ng agent binary uploaded to demons, relative to the install dir")
	flags.StringVarP(&Interface, "interface", "", Interface, "tunnel interface name")
	flags.StringVarP(&SessionName, "session", "", SessionName, "tmux session hosting the proxy")

	// Quiet and debug flags must be used independently.
	rootCmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !ShowHidden {
			for _, f := range hiddenFlags {
				err := cmd.Flags().MarkHidden(f)
				if err != nil {
					fmt.Printf("Failed to hide flag %v: %v\n", f, err)
				}
			}
		}
		helpFunc(cmd, args)
	})
}

// Execute starts command handling, called by main.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case Debug:
		log.SetLevel(logrus.DebugLevel)
	case Quiet:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
}

// check is a helper function that logs and exits if an error is not nil.
func check(message string, err error) {
	if err != nil {
		log.Fatalf("%s: %v", message, err)
	}
}

// exitOnError exits non-zero when err is set. The error has already been
// shown to the operator by a notifier.
func exitOnError(err error) {
	if err != nil {
		os.Exit(1)
	}
}

// binPath resolves a binary path against the install dir.
func binPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(filepath.Join(InstallDir, p))
	if err != nil {
		return filepath.Join(InstallDir, p)
	}
	return abs
}

// newNotifier honours --quiet.
func newNotifier() notify.Notifier {
	if Quiet {
		return notify.NewConsole(color.Output, notify.Important)
	}
	return notify.NewConsole(color.Output, notify.Info)
}

// loadSettings reads the settings file. A malformed file is fatal; invalid
// stored ranges are skipped with a warning.
func loadSettings() *settings.Settings {
	s, err := settings.Load(ConfigFile)
	check("failed to load settings", err)
	if dropped := s.Dropped(); len(dropped) > 0 {
		notify.Importantf(newNotifier(), "settings", "ignoring invalid ranges in %s: %v (removed on the next save)", ConfigFile, dropped)
	}
	return s
}

// core holds the components shared by commands that touch the host.
type core struct {
	settings   *settings.Settings
	notifier   notify.Notifier
	supervisor *session.Supervisor
}

var newRunner = func(l logrus.FieldLogger) shell.Runner {
	return shell.NewExec(l)
}

// newCore wires settings, escalation, the interface orchestrator and the
// session supervisor from the persistent flags.
func newCore() *core {
	s := loadSettings()
	n := newNotifier()
	runner := newRunner(log)

	if missing := escalate.MissingDependencies(exec.LookPath); len(missing) > 0 {
		notify.Infof(n, "dependencies", "missing from PATH: %v", missing)
	}
	wrapper, err := escalate.Named(Escalation, exec.LookPath)
	check("failed to select escalation wrapper", err)
	log.WithField("wrapper", wrapper.String()).Debug("escalation selected")

	network, err := netif.New(netif.Config{
		Runner:    runner,
		Wrapper:   wrapper,
		Interface: Interface,
		Log:       log,
	})
	check("failed to set up interface orchestrator", err)

	supervisor, err := session.New(session.Config{
		Multiplexer:  session.NewTmux(runner),
		Network:      network,
		Settings:     s,
		SettingsPath: ConfigFile,
		Notifier:     n,
		Name:         SessionName,
		ProxyBin:     binPath(ProxyBin),
		Log:          log,
	})
	check("failed to set up session supervisor", err)

	return &core{
		settings:   s,
		notifier:   n,
		supervisor: supervisor,
	}
}
