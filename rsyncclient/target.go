package rsyncclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Target identifies a server, a module on that server, and an optional
// in-module sub-path to request, parsed from a URL of the form
// rsync://HOST[:PORT]/MODULE[/PATH...] (the same address form rsync's
// own -a/rsync:// handling in rsync/options.c accepts).
type Target struct {
	Host   string
	Port   int
	Module string
	Path   string // in-module sub-path, "" means the module root
}

// DefaultPort is the rsync daemon's well-known TCP port.
const DefaultPort = 873

// ParseTarget parses raw as an rsync:// URL. The module is the URL
// path's first segment; anything after it is the in-module sub-path.
func ParseTarget(raw string) (*Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing target: %w", err)
	}
	if u.Scheme != "rsync" {
		return nil, fmt.Errorf("parsing target %q: scheme must be rsync://, got %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parsing target %q: missing host", raw)
	}

	t := &Target{Host: u.Hostname(), Port: DefaultPort}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("parsing target %q: invalid port %q: %w", raw, p, err)
		}
		t.Port = port
	}

	segment := strings.TrimPrefix(u.Path, "/")
	module, path, _ := strings.Cut(segment, "/")
	if module == "" {
		return nil, fmt.Errorf("parsing target %q: missing module", raw)
	}
	t.Module = module
	t.Path = path

	return t, nil
}

// Addr returns the host:port pair suitable for net.Dial.
func (t *Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}
