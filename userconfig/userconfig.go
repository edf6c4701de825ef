package userconfig

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/docker/go-units"
	yaml "gopkg.in/yaml.v2"
)

// Meta represents all current config options that the gateway daemon can
// use, i.e., after validation and parsing.
type Meta struct {
	Server Server `yaml:"server"`
	Mail   Mail   `yaml:"mail"`
}

// Server contains config options for the daemon's HTTP surface.
type Server struct {
	ListenAddress string
	// Path to the JSON file mapping config tokens to site profiles
	SitesPath string
	// Origins allowed by the CORS middleware. Defaults to a single "*".
	CORSOrigins []string
	// Largest request body the gateway accepts, in bytes
	MaxBodySize int64
	// Message returned to the caller after a successful send
	SuccessMessage string
}

// rawServer is the YAML shape of the server section before parsing.
type rawServer struct {
	Listen         string   `yaml:"listen"`
	Sites          string   `yaml:"sites"`
	CORSOrigins    []string `yaml:"corsOrigins"`
	MaxBodySize    string   `yaml:"maxBodySize"`
	SuccessMessage string   `yaml:"successMessage"`
}

// UnmarshalYAML parses the user-provided server section, returning any
// parsing errors. The body size limit arrives as a human-readable string
// such as "1MB".
func (s *Server) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v rawServer
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the server config: %v", err)
	}

	s.ListenAddress = v.Listen
	s.SitesPath = v.Sites
	s.CORSOrigins = v.CORSOrigins
	s.SuccessMessage = v.SuccessMessage

	if v.MaxBodySize != "" {
		n, err := units.RAMInBytes(v.MaxBodySize)
		if err != nil {
			return fmt.Errorf(
				"can't parse the user-provided max body size as a size: %v",
				err,
			)
		}
		s.MaxBodySize = n
	}
	return nil
}

// CheckAndSetDefaults validates s and either returns a copy of s with
// default settings applied or returns an error due to an invalid
// configuration.
func (s *Server) CheckAndSetDefaults() (Server, error) {
	c := *s

	if c.SitesPath == "" {
		return Server{}, errors.New(
			"user-provided config does not include a sites file path",
		)
	}
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = units.MiB
	}
	if c.SuccessMessage == "" {
		c.SuccessMessage = "Emails sent."
	}
	return c, nil
}

// Mail contains the daemon-wide SMTP relay settings. Individual sites
// may override any of these in the sites file.
type Mail struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Crypto selects the transport security: "tls" for STARTTLS, "ssl"
	// for implicit TLS, empty for a plaintext connection.
	Crypto string `yaml:"crypto"`
	From   string `yaml:"from"`
}

// CheckAndSetDefaults validates m and either returns a copy of m with
// default settings applied or returns an error due to an invalid
// configuration.
func (m *Mail) CheckAndSetDefaults() (Mail, error) {
	c := *m

	if c.Host == "" {
		return Mail{}, errors.New(
			"user-provided config does not include a mail relay host",
		)
	}
	if c.From == "" {
		return Mail{}, errors.New(
			"user-provided config does not include a from address",
		)
	}
	if c.Port == 0 {
		c.Port = 25
	}
	switch c.Crypto {
	case "", "tls", "ssl":
	default:
		return Mail{}, fmt.Errorf("unsupported mail crypto %q", c.Crypto)
	}
	return c, nil
}

// CheckAndSetDefaults validates m and either returns a copy of m with
// default settings applied or returns an error due to an invalid
// configuration.
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{}

	s, err := m.Server.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Server = s

	ml, err := m.Mail.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Mail = ml

	return c, nil
}

// Parse generates usable configurations from possibly arbitrary user
// input. An error indicates a problem with parsing or validation.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	if reflect.DeepEqual(m.Server, Server{}) {
		return &Meta{}, errors.New("must include a \"server\" section")
	}

	if (m.Mail == Mail{}) {
		return &Meta{}, errors.New("must include a \"mail\" section")
	}

	return &m, nil
}
