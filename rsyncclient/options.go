package rsyncclient

import "github.com/cmur2/rsyncpull/internal/log"

// Option configures a Client constructed with New.
type Option func(*Client)

// WithLogger directs the client's diagnostic output to logger instead
// of discarding it.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVerbose enables per-file and per-phase log lines.
func WithVerbose(verbose bool) Option {
	return func(c *Client) { c.verbose = verbose }
}

// WithDryRun makes Run perform the full handshake and file-list
// exchange but skip writing any local file.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) { c.dryRun = dryRun }
}
