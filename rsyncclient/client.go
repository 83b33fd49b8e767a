// Package rsyncclient is the public entry point for pulling one module
// from an rsync protocol 27 server: construct a Client with New, then
// call Run once per connection. The client never dials anything
// itself; it drives the protocol over whatever io.ReadWriter the
// caller supplies, so it works equally well over a TCP socket, a
// subprocess's stdin/stdout, or an in-process io.Pipe in tests.
package rsyncclient

import (
	"context"
	"fmt"
	"io"

	"github.com/cmur2/rsyncpull/internal/filelist"
	"github.com/cmur2/rsyncpull/internal/handshake"
	"github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/receiver"
	"github.com/cmur2/rsyncpull/internal/rsyncstats"
)

// Client pulls one rsync module to a local destination directory.
type Client struct {
	logger  *log.Logger
	verbose bool
	dryRun  bool
}

// New constructs a Client. With no options, it logs nothing and
// performs a real (non-dry-run) transfer.
func New(opts ...Option) *Client {
	c := &Client{logger: log.Discard}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs the text handshake for module/path, receives the file
// list, then runs the generator/receiver pair to reconstruct every
// file module/path selects into destDir, returning the server's final
// transfer statistics.
func (c *Client) Run(ctx context.Context, conn io.ReadWriter, module, path, destDir string) (*rsyncstats.TransferStats, error) {
	res, err := handshake.Run(conn, module, path, c.logger)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	fileList, err := filelist.Receive(res.Conn, c.logger)
	if err != nil {
		return nil, fmt.Errorf("receiving file list: %w", err)
	}
	if c.verbose {
		c.logger.Printf("received %d file-list entries", len(fileList))
	}

	rt, err := receiver.NewTransfer(c.logger, &receiver.TransferOpts{
		Verbose: c.verbose,
		DryRun:  c.dryRun,
	}, res.Conn, res.Seed, destDir)
	if err != nil {
		return nil, fmt.Errorf("preparing destination: %w", err)
	}
	defer rt.Close()

	return rt.Do(ctx, fileList)
}

// RunTarget is a convenience wrapper around Run that takes a parsed
// Target instead of separate module/path arguments.
func (c *Client) RunTarget(ctx context.Context, conn io.ReadWriter, target *Target, destDir string) (*rsyncstats.TransferStats, error) {
	return c.Run(ctx, conn, target.Module, target.Path, destDir)
}
