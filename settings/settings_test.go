package settings

import (
	"errors"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"ligopivot/fault"
)

func mustSettings(t *testing.T, addr, port string, admin bool, cert, key string, ranges ...string) *Settings {
	t.Helper()
	s := Default()
	if err := s.SetListenerAddress(addr); err != nil {
		t.Fatalf("set address: %v", err)
	}
	if err := s.SetListenerPort(port); err != nil {
		t.Fatalf("set port: %v", err)
	}
	s.SetAdmin(admin)
	s.SetCertFile(cert)
	s.SetKeyFile(key)
	for _, r := range ranges {
		if err := s.AppendRange(r); err != nil {
			t.Fatalf("append range: %v", err)
		}
	}
	return s
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(s, Default()) {
		t.Errorf("Load = %+v, want defaults %+v", s, Default())
	}
	if s.GetListenerAddress() != "0.0.0.0" || s.GetListenerPort() != "1234" {
		t.Errorf("unexpected listener defaults %s:%s", s.GetListenerAddress(), s.GetListenerPort())
	}
	if s.GetAdmin() || len(s.GetRanges()) != 0 || s.HasCertificates() {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"ip_addr": "10.0.0.5",`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed settings file")
	}
}

func TestLoadAcceptsNumericPortAndLegacySentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	doc := `{"ip_addr": "10.0.0.5", "port": 8443, "admin": true, "ranges": ["192.168.1.0/24"], "certfile": "None", "keyfile": "None"}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetListenerPort() != "8443" {
		t.Errorf("port = %q, want 8443", s.GetListenerPort())
	}
	if !s.GetAdmin() {
		t.Error("admin should be true")
	}
	if s.HasCertificates() {
		t.Error("legacy None sentinel should mean no certificates")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("legacy sentinel pair should validate: %v", err)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("LIGOPIVOT_IP_ADDR", "172.16.0.9")

	s, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.GetListenerAddress() != "172.16.0.9" {
		t.Errorf("address = %q, want env override", s.GetListenerAddress())
	}
}

func TestLoadSkipsInvalidRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ligopivot.json")
	data := `{"ip_addr": "10.0.0.5", "ranges": ["192.168.1.0/24", "10.10.0.0/33", "192.168.2.5/24", "10.20.0.0/16"]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.GetRanges(); !reflect.DeepEqual(got, []string{"192.168.1.0/24", "10.20.0.0/16"}) {
		t.Errorf("ranges = %v", got)
	}
	if got := s.Dropped(); !reflect.DeepEqual(got, []string{"10.10.0.0/33", "192.168.2.5/24"}) {
		t.Errorf("dropped = %v", got)
	}

	if _, err := s.RemoveRange(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	s, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.GetRanges(); !reflect.DeepEqual(got, []string{"10.20.0.0/16"}) {
		t.Errorf("ranges after save = %v", got)
	}
	if len(s.Dropped()) != 0 {
		t.Errorf("invalid ranges survived the save: %v", s.Dropped())
	}
}

func TestSaveKeepsEnvironmentOverridesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ligopivot.json")
	if err := mustSettings(t, "10.0.0.5", "1234", false, "none", "none").Save(path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIGOPIVOT_IP_ADDR", "172.16.0.9")
	t.Setenv("LIGOPIVOT_PORT", "443")

	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !s.FromEnv("ip_addr") || !s.FromEnv("port") || s.FromEnv("admin") {
		t.Errorf("override detection: ip_addr=%v port=%v admin=%v", s.FromEnv("ip_addr"), s.FromEnv("port"), s.FromEnv("admin"))
	}
	if got := s.GetListenerEndpoint(); got != "172.16.0.9:443" {
		t.Errorf("endpoint = %q, want env values", got)
	}

	// An explicit set is persisted; the untouched override is not.
	if err := s.SetListenerPort("8443"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "172.16.0.9") {
		t.Errorf("environment override was written to the file:\n%s", data)
	}
	for _, want := range []string{`"10.0.0.5"`, `"8443"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("file missing %s:\n%s", want, data)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tests := []*Settings{
		Default(),
		mustSettings(t, "10.0.0.5", "1234", false, "none", "none", "192.168.1.0/24"),
		mustSettings(t, "10.0.0.5", "443", true, "/a.pem", "/a.key", "192.168.1.0/24", "10.10.0.0/16", "192.168.1.0/24"),
		mustSettings(t, "fd00::1", "65535", false, "None", "none", "fd01::/64"),
	}

	for i, want := range tests {
		path := filepath.Join(t.TempDir(), "settings.json")
		if err := want.Save(path); err != nil {
			t.Fatalf("case %d: save: %v", i, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("case %d: load: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("case %d: round trip mismatch\n got: %+v\nwant: %+v", i, got, want)
		}
	}
}

func TestSaveRejectsSingleCertificate(t *testing.T) {
	tests := []struct {
		cert, key string
	}{
		{"/a.pem", "none"},
		{"none", "/a.key"},
		{"/a.pem", "None"},
	}

	for _, tt := range tests {
		path := filepath.Join(t.TempDir(), "settings.json")
		s := mustSettings(t, "10.0.0.5", "1234", false, tt.cert, tt.key)

		err := s.Save(path)
		if !fault.IsValidation(err) {
			t.Errorf("cert=%s key=%s: expected validation error, got %v", tt.cert, tt.key, err)
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("cert=%s key=%s: save must not write, stat err = %v", tt.cert, tt.key, err)
		}
	}
}

func TestSaveOverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	first := mustSettings(t, "10.0.0.5", "1234", false, "none", "none", "192.168.1.0/24")
	if err := first.Save(path); err != nil {
		t.Fatal(err)
	}
	second := mustSettings(t, "10.0.0.6", "4321", false, "none", "none")
	if err := second.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, second) {
		t.Errorf("got %+v, want %+v", got, second)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the settings file, found %d entries", len(entries))
	}
}

func TestSettersRejectInvalidValues(t *testing.T) {
	s := Default()

	if err := s.SetListenerAddress("not-an-ip"); !fault.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if s.GetListenerAddress() != DefaultAddress {
		t.Error("failed set must not mutate address")
	}

	for _, p := range []string{"0", "65536", "http", ""} {
		if err := s.SetListenerPort(p); !fault.IsValidation(err) {
			t.Errorf("port %q: expected validation error, got %v", p, err)
		}
	}
	if s.GetListenerPort() != DefaultPort {
		t.Error("failed set must not mutate port")
	}

	if err := s.AppendRange("192.168.1.0"); !fault.IsValidation(err) {
		t.Errorf("expected validation error for missing prefix length, got %v", err)
	}
	if err := s.AppendRange("192.168.1.5/24"); !fault.IsValidation(err) {
		t.Errorf("expected validation error for host bits, got %v", err)
	}
	if err := s.AppendRange("   "); err != nil {
		t.Errorf("blank range should be ignored, got %v", err)
	}
	if len(s.GetRanges()) != 0 {
		t.Errorf("ranges mutated: %v", s.GetRanges())
	}
}

func TestToggleAdmin(t *testing.T) {
	s := Default()
	s.ToggleAdmin()
	if !s.GetAdmin() {
		t.Error("toggle should enable admin")
	}
	s.ToggleAdmin()
	if s.GetAdmin() {
		t.Error("second toggle should disable admin")
	}
}

func TestDialable(t *testing.T) {
	for addr, ok := range map[string]bool{"0.0.0.0": false, "::": false, "10.0.0.5": true, "fd00::1": true} {
		s := mustSettings(t, addr, "1234", false, "none", "none")
		err := s.Dialable("start server")
		if ok && err != nil {
			t.Errorf("%s: unexpected error %v", addr, err)
		}
		if !ok && !fault.IsPrecondition(err) {
			t.Errorf("%s: expected precondition error, got %v", addr, err)
		}
	}
}

func TestListenerEndpoint(t *testing.T) {
	if got := mustSettings(t, "10.0.0.5", "1234", false, "none", "none").GetListenerEndpoint(); got != "10.0.0.5:1234" {
		t.Errorf("endpoint = %s", got)
	}
	if got := mustSettings(t, "fd00::1", "1234", false, "none", "none").GetListenerEndpoint(); got != "[fd00::1]:1234" {
		t.Errorf("endpoint = %s", got)
	}
}

// Positions are 1-based and every in-bounds position is accepted.
func TestRemoveRangeBounds(t *testing.T) {
	ranges := []string{"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24"}

	tests := []struct {
		name    string
		pos     int
		wantErr bool
		want    []string
	}{
		{"placeholder position", 0, true, ranges},
		{"negative", -1, true, ranges},
		{"past end", 4, true, ranges},
		{"first", 1, false, []string{"10.0.1.0/24", "10.0.2.0/24"}},
		{"middle", 2, false, []string{"10.0.0.0/24", "10.0.2.0/24"}},
		{"last", 3, false, []string{"10.0.0.0/24", "10.0.1.0/24"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSettings(t, "10.0.0.5", "1234", false, "none", "none", ranges...)
			removed, err := s.RemoveRange(tt.pos)
			if tt.wantErr {
				if !fault.IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if removed != ranges[tt.pos-1] {
					t.Errorf("removed %s, want %s", removed, ranges[tt.pos-1])
				}
			}
			if got := s.GetRanges(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ranges = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoveRangeDoesNotAliasEarlierCopies(t *testing.T) {
	s := mustSettings(t, "10.0.0.5", "1234", false, "none", "none", "10.0.0.0/24", "10.0.1.0/24")
	before := s.GetRanges()
	if _, err := s.RemoveRange(1); err != nil {
		t.Fatal(err)
	}
	if before[0] != "10.0.0.0/24" || before[1] != "10.0.1.0/24" {
		t.Errorf("earlier copy mutated: %v", before)
	}
}

func TestCursor(t *testing.T) {
	s := mustSettings(t, "10.0.0.5", "1234", false, "none", "none", "10.0.0.0/24", "10.0.1.0/24")

	var c Cursor
	if _, err := c.RemoveSelected(s); !fault.IsValidation(err) {
		t.Fatalf("expected error with nothing selected, got %v", err)
	}

	c.Select(5)
	if _, err := c.RemoveSelected(s); !fault.IsValidation(err) {
		t.Fatalf("expected error for out of range selection, got %v", err)
	}
	if c.Selected() != 5 {
		t.Errorf("failed removal changed cursor to %d", c.Selected())
	}
	if len(s.GetRanges()) != 2 {
		t.Errorf("failed removal changed ranges: %v", s.GetRanges())
	}

	c.Select(2)
	removed, err := c.RemoveSelected(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != "10.0.1.0/24" {
		t.Errorf("removed %s", removed)
	}
	if c.Selected() != 0 {
		t.Errorf("cursor should be cleared, got %d", c.Selected())
	}
}

func TestContainsAddr(t *testing.T) {
	s := mustSettings(t, "10.0.0.5", "1234", false, "none", "none", "192.168.1.0/24", "10.10.0.0/16")

	r, ok := s.ContainsAddr(netip.MustParseAddr("10.10.4.2"))
	if !ok || r != "10.10.0.0/16" {
		t.Errorf("ContainsAddr = %s, %v", r, ok)
	}
	if _, ok := s.ContainsAddr(netip.MustParseAddr("8.8.8.8")); ok {
		t.Error("8.8.8.8 should not be in range")
	}
}
