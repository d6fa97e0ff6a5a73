package cmd

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/fatih/color"
	"github.com/m1gwings/treedrawer/tree"
	"github.com/spf13/cobra"

	"ligopivot/netif"
	"ligopivot/session"
	"ligopivot/settings"
)

// Add command and set flags.
func init() {
	// Usage info.
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pivot layout",
		Long:  `Show diagram of the ligolo server, tunnel interface and routed ranges`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			s := loadSettings()
			running := session.IsRunning(cmd.Context(), session.NewTmux(newRunner(log)), SessionName)
			t := statusTree(s, running, netif.NewLinkTable())

			fmt.Println()
			fmt.Fprintln(color.Output, WhiteBold(t))
			fmt.Println()
		},
	}

	rootCmd.AddCommand(cmd)
}

// statusTree draws the server node with one child per range.
func statusTree(s *settings.Settings, running bool, links netif.LinkTable) *tree.Tree {
	t := tree.NewTree(tree.NodeString(" Ligolo Pivot Status "))

	state := "stopped"
	if running {
		state = "running"
	}
	link := "absent"
	if ok, err := links.HasLink(Interface); err == nil && ok {
		link = "present"
	}

	server := fmt.Sprintf(`server

  session: %v (%v)
 listener: %v
    admin: %v
interface: %v (%v) `,
		SessionName, state,
		s.GetListenerEndpoint(),
		s.GetAdmin(),
		Interface, link,
	)
	if s.HasCertificates() {
		server += fmt.Sprintf("\n certfile: %v \n  keyfile: %v ", s.GetCertFile(), s.GetKeyFile())
	}
	t.AddChild(tree.NodeString(server))

	child, err := t.Child(0)
	check("could not build tree", err)
	for _, r := range s.GetRanges() {
		child.AddChild(tree.NodeString(rangeNode(r, links)))
	}
	return t
}

func rangeNode(r string, links netif.LinkTable) string {
	routed := "not routed"
	if p, err := netip.ParsePrefix(r); err == nil {
		if ok, err := links.HasRoute(Interface, p.Masked()); err == nil && ok {
			routed = "routed"
		}
	}
	return strings.Join([]string{"range", "", " " + r + " ", " " + routed + " "}, "\n")
}
