// Package settings holds the listener configuration and the list of routed
// CIDR ranges, and persists them to a JSON file.
package settings

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"ligopivot/fault"
)

// None is the sentinel for an unset certificate or key path.
const None = "none"

// Defaults used when no settings file exists.
const (
	DefaultAddress = "0.0.0.0"
	DefaultPort    = "1234"
	EnvPrefix      = "LIGOPIVOT"
)

type Settings struct {
	listenerAddress string
	listenerPort    string
	admin           bool
	ranges          []string
	certFile        string
	keyFile         string

	// envKeys are keys whose loaded value came from a LIGOPIVOT_ variable.
	// Save writes the file's value for them until they are set explicitly.
	envKeys map[string]bool
	file    *Settings
	// dropped holds stored ranges that failed validation on load.
	dropped []string
}

// keys are the JSON keys of the settings file.
var keys = []string{"ip_addr", "port", "admin", "ranges", "certfile", "keyfile"}

type settingsJSON struct {
	IPAddr   string   `json:"ip_addr"`
	Port     string   `json:"port"`
	Admin    bool     `json:"admin"`
	Ranges   []string `json:"ranges"`
	CertFile string   `json:"certfile"`
	KeyFile  string   `json:"keyfile"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		listenerAddress: DefaultAddress,
		listenerPort:    DefaultPort,
		ranges:          []string{},
		certFile:        None,
		keyFile:         None,
	}
}

// Load reads settings from path. A missing file yields the defaults; a file
// that cannot be parsed is an error. Environment variables prefixed with
// LIGOPIVOT_ override file values for this run only. Stored ranges that are
// not valid are skipped and reported by Dropped.
func Load(path string) (*Settings, error) {
	fileOnly := newViper()
	withEnv := newViper()
	withEnv.SetEnvPrefix(EnvPrefix)
	withEnv.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		for _, v := range []*viper.Viper{fileOnly, withEnv} {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	s, err := fromViper(withEnv)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		if _, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(k)); ok {
			if s.envKeys == nil {
				s.envKeys = make(map[string]bool)
			}
			s.envKeys[k] = true
		}
	}
	if s.envKeys != nil {
		s.file, err = fromViper(fileOnly)
		if err != nil {
			s.file = Default()
		}
	}

	return s, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("ip_addr", DefaultAddress)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("admin", false)
	v.SetDefault("ranges", []string{})
	v.SetDefault("certfile", None)
	v.SetDefault("keyfile", None)
	return v
}

func fromViper(v *viper.Viper) (*Settings, error) {
	s := Default()
	if err := s.SetListenerAddress(v.GetString("ip_addr")); err != nil {
		return nil, err
	}
	if err := s.SetListenerPort(v.GetString("port")); err != nil {
		return nil, err
	}
	s.SetAdmin(v.GetBool("admin"))
	for _, r := range v.GetStringSlice("ranges") {
		if err := s.AppendRange(r); err != nil {
			s.dropped = append(s.dropped, r)
		}
	}
	s.SetCertFile(v.GetString("certfile"))
	s.SetKeyFile(v.GetString("keyfile"))
	return s, nil
}

// Dropped returns the stored ranges Load skipped because they were invalid.
// They are gone from the file after the next Save.
func (s *Settings) Dropped() []string {
	return append([]string(nil), s.dropped...)
}

// FromEnv reports whether key was overridden by the environment on load.
func (s *Settings) FromEnv(key string) bool {
	return s.envKeys[key]
}

// Validate checks cross-field invariants.
func (s *Settings) Validate() error {
	if isNone(s.certFile) != isNone(s.keyFile) {
		return fault.Validation("certificates", "", "only one of certfile and keyfile is set, set both or neither")
	}
	return nil
}

// Save validates s and atomically replaces the file at path.
func (s *Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	b, err := s.MarshalJSON()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// MarshalJSON renders the record as stored on disk. Values that only came
// from the environment are replaced by the file's values.
func (s *Settings) MarshalJSON() ([]byte, error) {
	doc := s.document()
	if s.file != nil {
		file := s.file.document()
		if s.envKeys["ip_addr"] {
			doc.IPAddr = file.IPAddr
		}
		if s.envKeys["port"] {
			doc.Port = file.Port
		}
		if s.envKeys["admin"] {
			doc.Admin = file.Admin
		}
		if s.envKeys["ranges"] {
			doc.Ranges = file.Ranges
		}
		if s.envKeys["certfile"] {
			doc.CertFile = file.CertFile
		}
		if s.envKeys["keyfile"] {
			doc.KeyFile = file.KeyFile
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (s *Settings) document() settingsJSON {
	ranges := s.ranges
	if ranges == nil {
		ranges = []string{}
	}
	return settingsJSON{
		IPAddr:   s.listenerAddress,
		Port:     s.listenerPort,
		Admin:    s.admin,
		Ranges:   ranges,
		CertFile: s.certFile,
		KeyFile:  s.keyFile,
	}
}

func (s *Settings) SetListenerAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if _, err := netip.ParseAddr(addr); err != nil {
		return fault.Validation("ip_addr", addr, "not an IP address")
	}

	s.listenerAddress = addr
	delete(s.envKeys, "ip_addr")
	return nil
}

func (s *Settings) GetListenerAddress() string {
	return s.listenerAddress
}

func (s *Settings) SetListenerPort(port string) error {
	port = strings.TrimSpace(port)
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fault.Validation("port", port, "must be between 1 and 65535")
	}

	s.listenerPort = strconv.Itoa(p)
	delete(s.envKeys, "port")
	return nil
}

func (s *Settings) GetListenerPort() string {
	return s.listenerPort
}

// GetListenerEndpoint returns address:port, bracketing IPv6 addresses.
func (s *Settings) GetListenerEndpoint() string {
	return net.JoinHostPort(s.listenerAddress, s.listenerPort)
}

// Dialable reports whether a remote agent can connect back to the listener
// address. The unspecified address is a valid stored value but not a valid
// connect-back target.
func (s *Settings) Dialable(action string) error {
	addr, err := netip.ParseAddr(s.listenerAddress)
	if err != nil || addr.IsUnspecified() {
		return fault.Precondition(action, "listener address "+s.listenerAddress+" cannot be connected back to, set it to your own IP address")
	}
	return nil
}

func (s *Settings) SetAdmin(admin bool) {
	s.admin = admin
	delete(s.envKeys, "admin")
}

// ToggleAdmin flips the admin flag, like the settings checkbox.
func (s *Settings) ToggleAdmin() {
	s.admin = !s.admin
	delete(s.envKeys, "admin")
}

func (s *Settings) GetAdmin() bool {
	return s.admin
}

func (s *Settings) SetCertFile(path string) {
	s.certFile = normalizePath(path)
	delete(s.envKeys, "certfile")
}

func (s *Settings) GetCertFile() string {
	return s.certFile
}

func (s *Settings) SetKeyFile(path string) {
	s.keyFile = normalizePath(path)
	delete(s.envKeys, "keyfile")
}

func (s *Settings) GetKeyFile() string {
	return s.keyFile
}

// HasCertificates reports whether both a certificate and a key are set.
func (s *Settings) HasCertificates() bool {
	return !isNone(s.certFile) && !isNone(s.keyFile)
}

// GetRanges returns a copy of the configured CIDR ranges.
func (s *Settings) GetRanges() []string {
	return append([]string{}, s.ranges...)
}

// NormalizeRange trims cidr and checks that it names a network in CIDR
// notation. Empty input yields "" and no error.
func NormalizeRange(cidr string) (string, error) {
	cidr = strings.TrimSpace(cidr)
	if cidr == "" {
		return "", nil
	}
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", fault.Validation("range", cidr, "not in CIDR notation")
	}
	if p != p.Masked() {
		return "", fault.Validation("range", cidr, "host bits are set, use "+p.Masked().String())
	}
	return p.String(), nil
}

// AppendRange adds a CIDR range. Empty input is ignored.
func (s *Settings) AppendRange(cidr string) error {
	cidr, err := NormalizeRange(cidr)
	if err != nil || cidr == "" {
		return err
	}

	s.ranges = append(s.ranges, cidr)
	delete(s.envKeys, "ranges")
	return nil
}

// RemoveRange removes the range at the 1-based position pos and returns it.
func (s *Settings) RemoveRange(pos int) (string, error) {
	i := pos - 1
	if i < 0 || i >= len(s.ranges) {
		return "", fault.Validation("range", strconv.Itoa(pos), "selected CIDR not saved")
	}

	removed := s.ranges[i]
	s.ranges = append(s.ranges[:i:i], s.ranges[i+1:]...)
	delete(s.envKeys, "ranges")
	return removed, nil
}

// ContainsAddr reports which configured range, if any, contains addr.
func (s *Settings) ContainsAddr(addr netip.Addr) (string, bool) {
	for _, r := range s.ranges {
		p, err := netip.ParsePrefix(r)
		if err != nil {
			continue
		}
		if p.Contains(addr) {
			return r, true
		}
	}
	return "", false
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return None
	}
	return path
}

func isNone(path string) bool {
	return path == "" || strings.EqualFold(path, None)
}
