package sites

// sites resolves the opaque config tokens that calling websites present
// into server-side delivery profiles. The profiles live in a single JSON
// file that is read once at startup and never written.

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SMTP overrides the daemon-wide mail relay settings for one site. Zero
// values mean "use the daemon-wide setting".
type SMTP struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	User   string `json:"user"`
	Passwd string `json:"passwd"`
	Crypto string `json:"crypto"`
	From   string `json:"from"`
}

// Site describes one calling website's delivery profile: the reCAPTCHA
// secret used to authenticate its submissions, the recipients every
// submission goes to, and optional relay overrides.
type Site struct {
	Secret     string   `json:"secret"`
	Recipients []string `json:"recipients"`
	SMTP       *SMTP    `json:"smtp"`
}

// Registry holds the token-to-site mapping. Read only after Load, so it
// needs no locking.
type Registry struct {
	sites map[string]Site
}

// Load reads the sites file at path. An unreadable file is a startup
// error, not something to limp along without.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open the sites file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a token-to-site mapping from r.
func Parse(r io.Reader) (*Registry, error) {
	sites := make(map[string]Site)
	if err := json.NewDecoder(r).Decode(&sites); err != nil {
		return nil, fmt.Errorf("corrupted sites file: %w", err)
	}
	return &Registry{sites: sites}, nil
}

// Get resolves a config token. The second return value is false when the
// token names no site.
func (r *Registry) Get(token string) (Site, bool) {
	s, ok := r.sites[token]
	return s, ok
}

// Len returns the number of configured sites.
func (r *Registry) Len() int {
	return len(r.sites)
}
