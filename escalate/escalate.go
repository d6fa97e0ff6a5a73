// Package escalate decides how privileged commands are invoked.
//
// Two graphical wrappers are supported and they disagree on quoting: pkexec
// takes the inner command as bare arguments, kdesu wants the whole inner
// command line as the single argument of -c. Getting this wrong makes kdesu
// run only the first word of the command.
package escalate

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"ligopivot/shell"
)

// Wrapper runs a command with elevated privileges.
type Wrapper struct {
	Name   string
	Prefix []string
	// SingleArgument wraps the inner command as one quoted argument.
	SingleArgument bool
}

var (
	Pkexec = Wrapper{Name: "pkexec", Prefix: []string{"pkexec", "-u", "root"}}
	Kdesu  = Wrapper{Name: "kdesu", Prefix: []string{"kdesu", "-c"}, SingleArgument: true}
	Direct = Wrapper{Name: "direct"}
)

// Wrap returns argv prefixed by the wrapper using its quoting convention.
func (w Wrapper) Wrap(argv []string) []string {
	wrapped := append([]string(nil), w.Prefix...)
	if w.SingleArgument {
		return append(wrapped, shell.Join(argv))
	}
	return append(wrapped, argv...)
}

func (w Wrapper) String() string {
	if len(w.Prefix) == 0 {
		return w.Name
	}
	return strings.Join(w.Prefix, " ")
}

// LookPath is exec.LookPath, injectable for tests.
type LookPath func(file string) (string, error)

// Detect picks the escalation wrapper for this host. pkexec is preferred,
// but kdesu takes priority when it is installed. A process already running
// as root needs no wrapper.
func Detect(lookPath LookPath, euid int) (Wrapper, error) {
	if euid == 0 {
		return Direct, nil
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var w Wrapper
	found := false
	if _, err := lookPath("pkexec"); err == nil {
		w, found = Pkexec, true
	}
	if _, err := lookPath("kdesu"); err == nil {
		w, found = Kdesu, true
	}
	if !found {
		return Wrapper{}, fmt.Errorf("no escalation wrapper found: install kdesu or pkexec")
	}
	return w, nil
}

// Named returns a wrapper by name. "auto" or an empty name runs Detect.
func Named(name string, lookPath LookPath) (Wrapper, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return Detect(lookPath, os.Geteuid())
	case "pkexec":
		return Pkexec, nil
	case "kdesu":
		return Kdesu, nil
	case "direct", "none":
		return Direct, nil
	}
	return Wrapper{}, fmt.Errorf("unknown escalation wrapper %q", name)
}

// MissingDependencies reports which required tools are absent from PATH.
func MissingDependencies(lookPath LookPath) []string {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var missing []string
	if _, err := lookPath("tmux"); err != nil {
		missing = append(missing, "tmux")
	}
	if _, err := lookPath("ip"); err != nil {
		missing = append(missing, "ip")
	}
	_, errKdesu := lookPath("kdesu")
	_, errPkexec := lookPath("pkexec")
	if errKdesu != nil && errPkexec != nil && os.Geteuid() != 0 {
		missing = append(missing, "kdesu (or pkexec)")
	}
	return missing
}
