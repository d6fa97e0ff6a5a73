package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"ligopivot/fault"
)

// mockExecCommand re-runs the test binary as a fake tool that prints output
// and exits with exitCode.
func mockExecCommand(output string, exitCode string) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"MOCK_OUTPUT=" + output,
			"MOCK_EXIT_CODE=" + exitCode,
		}
		return cmd
	}
}

// TestHelperProcess is not a real test. It stands in for external tools.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	_, _ = os.Stdout.WriteString(os.Getenv("MOCK_OUTPUT"))
	if os.Getenv("MOCK_EXIT_CODE") == "1" {
		os.Exit(1)
	}
	os.Exit(0)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestExecRunSuccess(t *testing.T) {
	e := NewExec(quietLogger())
	e.execCommand = mockExecCommand("ligolo_server_havoc: 1 windows", "0")

	out, err := e.Run(context.Background(), []string{"tmux", "list-sessions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "ligolo_server_havoc: 1 windows" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExecRunFailureIsExternalToolError(t *testing.T) {
	e := NewExec(quietLogger())
	e.execCommand = mockExecCommand("RTNETLINK answers: File exists", "1")

	argv := []string{"ip", "route", "add", "10.0.0.0/24", "dev", "ligolo"}
	_, err := e.Run(context.Background(), argv)
	if err == nil {
		t.Fatal("expected error")
	}

	var x *fault.ExternalToolError
	if !errors.As(err, &x) {
		t.Fatalf("expected ExternalToolError, got %T", err)
	}
	if !reflect.DeepEqual(x.Argv, argv) {
		t.Errorf("argv = %v, want %v", x.Argv, argv)
	}
	if !fault.OutputContains(err, "file exists") {
		t.Errorf("expected output to be carried, got %q", x.Output)
	}
}

func TestExecRunEmptyArgv(t *testing.T) {
	e := NewExec(quietLogger())
	if _, err := e.Run(context.Background(), nil); !fault.IsExternal(err) {
		t.Fatalf("expected ExternalToolError, got %v", err)
	}
}

func TestJoinQuotesArguments(t *testing.T) {
	got := Join([]string{"/opt/ligolo ng/proxy", "-laddr", "10.0.0.5:1234"})
	want := `'/opt/ligolo ng/proxy' -laddr 10.0.0.5:1234`
	if got != want {
		t.Errorf("Join = %q, want %q", got, want)
	}

	argv, err := Split(got)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(argv) != 3 || argv[0] != "/opt/ligolo ng/proxy" {
		t.Errorf("Split round trip = %q", argv)
	}
}
