package cmd

import (
	"bytes"
	"fmt"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"ligopivot/fault"
	"ligopivot/settings"
)

type links struct {
	link   bool
	routes map[string]bool
}

func (l links) HasLink(string) (bool, error) { return l.link, nil }

func (l links) HasRoute(_ string, dst netip.Prefix) (bool, error) {
	return l.routes[dst.String()], nil
}

func changedSet(names ...string) func(string) bool {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestSettingsSetAppliesOnlyChangedFlags(t *testing.T) {
	s := settings.Default()
	s.SetAdmin(true)

	c := settingsSetCmdConfig{
		addr:     "10.0.0.5",
		port:     "11601",
		certFile: "/a.pem",
		keyFile:  "/a.key",
	}
	if err := c.apply(s, changedSet("ip", "certfile", "keyfile")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.GetListenerEndpoint(); got != "10.0.0.5:1234" {
		t.Errorf("endpoint = %q", got)
	}
	if !s.GetAdmin() {
		t.Error("admin changed without its flag")
	}
	if !s.HasCertificates() {
		t.Error("certificates not set")
	}
}

func TestSettingsSetCollectsErrors(t *testing.T) {
	s := settings.Default()
	c := settingsSetCmdConfig{addr: "10.0.0", port: "70000", toggleAdmin: true}

	err := c.apply(s, changedSet("ip", "port", "toggle-admin"))
	if !fault.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := s.GetListenerEndpoint(); got != "0.0.0.0:1234" {
		t.Errorf("invalid values were applied: %q", got)
	}
	if !s.GetAdmin() {
		t.Error("valid toggle should still apply")
	}
}

func TestSettingsSetSingleCertificateIsNotSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ligopivot.json")
	s := settings.Default()
	c := settingsSetCmdConfig{certFile: "/a.pem"}

	if err := c.apply(s, changedSet("certfile")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Save(path); !fault.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrintRanges(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	s := settings.Default()
	var buf bytes.Buffer
	printRanges(&buf, s)
	if !strings.Contains(buf.String(), "none") {
		t.Errorf("empty list output = %q", buf.String())
	}

	for _, r := range []string{"192.168.1.0/24", "10.10.0.0/16"} {
		if err := s.AppendRange(r); err != nil {
			t.Fatal(err)
		}
	}
	buf.Reset()
	printRanges(&buf, s)
	for _, want := range []string{"1. 192.168.1.0/24", "2. 10.10.0.0/16"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q: %q", want, buf.String())
		}
	}
}

func TestStatusTree(t *testing.T) {
	s := settings.Default()
	if err := s.SetListenerAddress("10.0.0.5"); err != nil {
		t.Fatal(err)
	}
	for _, r := range []string{"192.168.1.0/24", "10.10.0.0/16"} {
		if err := s.AppendRange(r); err != nil {
			t.Fatal(err)
		}
	}

	out := fmt.Sprint(statusTree(s, true, links{link: true, routes: map[string]bool{"192.168.1.0/24": true}}))
	for _, want := range []string{
		"Ligolo Pivot Status",
		"ligolo_server_havoc (running)",
		"10.0.0.5:1234",
		"ligolo (present)",
		"192.168.1.0/24",
		"10.10.0.0/16",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "not routed"); n != 1 {
		t.Errorf("expected one unrouted range, got %d:\n%s", n, out)
	}
}

func TestBinPath(t *testing.T) {
	defer func(d string) { InstallDir = d }(InstallDir)
	InstallDir = "/opt/tools"

	if got := binPath("ligolo-ng/proxy"); got != "/opt/tools/ligolo-ng/proxy" {
		t.Errorf("relative path = %q", got)
	}
	if got := binPath("/usr/bin/proxy"); got != "/usr/bin/proxy" {
		t.Errorf("absolute path = %q", got)
	}
}

func TestConnectHelpSaysCommandsAreRendered(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"connect"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(c.Long, "Render the Havoc console commands") || !strings.Contains(c.Long, "Nothing is sent to the demon") {
		t.Errorf("connect help overstates what it does: %q", c.Long)
	}
}

func TestSettingsSetHelpMentionsEnvironmentOverrides(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"settings", "set"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Long, "LIGOPIVOT_") {
		t.Errorf("set help = %q", c.Long)
	}
}
