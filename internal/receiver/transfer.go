// Package receiver implements the generator and receiver halves of a
// pull transfer: the generator walks the file list
// and emits per-file requests (skip, mkdir, whole file, or block
// checksums) over the connection's write half, while the receiver reads
// the resulting token stream over the read half and reconstructs each
// file locally. Both halves share one Transfer and run concurrently
// (see do.go), exactly as rsync/main.c:do_recv runs generator and
// receiver concurrently over the two halves of one socket.
package receiver

import (
	"os"

	"github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/rsyncwire"
)

// TransferOpts are the knobs this client exposes as configuration
// rather than protocol detail.
type TransferOpts struct {
	// Verbose enables the per-file and per-phase log lines; without it
	// the generator and receiver log nothing, and failures are reported
	// only through the returned errors.
	Verbose bool
	// DryRun still walks the file list, but the generator creates no
	// directories and requests no files: it only logs (when Verbose)
	// each file it would have transferred, so nothing is written.
	DryRun bool
}

// Transfer holds everything the generator and receiver need: the
// negotiated seed, the enveloped connection, and the confined
// destination root both sides read from and write to.
type Transfer struct {
	Logger *log.Logger
	Opts   *TransferOpts
	Conn   *rsyncwire.Conn
	Seed   int32

	// Dest is the destination directory as a plain path, used for the
	// two operations that do not go through DestRoot: creating the
	// pending file (and its parent directories) and os.Chtimes.
	Dest string
	// DestRoot confines every Stat/Open/Mkdir to Dest, so a malicious
	// or buggy name in the file list (e.g. containing "..") cannot
	// escape the destination directory, the same guarantee upstream
	// rsync's clean_fname()/sanitize_path() aim for.
	DestRoot *os.Root
}

// NewTransfer opens dest (creating it if necessary) and confines all
// subsequent filesystem access to it.
func NewTransfer(logger *log.Logger, opts *TransferOpts, conn *rsyncwire.Conn, seed int32, dest string) (*Transfer, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return nil, err
	}
	return &Transfer{
		Logger:   logger,
		Opts:     opts,
		Conn:     conn,
		Seed:     seed,
		Dest:     dest,
		DestRoot: root,
	}, nil
}

// Close releases the destination root handle.
func (rt *Transfer) Close() error {
	return rt.DestRoot.Close()
}
