// Package handshake implements the client side of the rsync daemon
// text greeting (rsync/clientserver.c:start_inband_exchange): version
// negotiation, module selection, MOTD drain, server-options emission,
// and the checksum-seed exchange, ending with the connection's read
// side switched over to the multiplex envelope.
package handshake

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	rsync27 "github.com/cmur2/rsyncpull"
	"github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/rsyncerr"
	"github.com/cmur2/rsyncpull/internal/rsyncwire"
)

// State is a point in the connection lifecycle. It exists for logging
// and for tests that assert the handshake reaches the expected state
// before handing off to the generator/receiver.
type State int

const (
	Fresh State = iota
	TextHandshake
	OptionsSent
	Seeded
	Enveloped
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case TextHandshake:
		return "text-handshake"
	case OptionsSent:
		return "options-sent"
	case Seeded:
		return "seeded"
	case Enveloped:
		return "enveloped"
	default:
		return "unknown"
	}
}

// serverOptions is the fixed option list this client presents to the
// daemon: --server --sender selects the daemon's sender role (we are
// pulling), -ltpr requests preserve-links, preserve-times, recursive,
// preserve-perms. Changing this list changes the file-list encoding the
// server produces, so internal/filelist must be kept in lockstep.
var serverOptions = []string{"--server", "--sender", "-ltpr"}

// Result carries everything the generator/receiver phase needs after a
// successful handshake.
type Result struct {
	Seed  int32
	Conn  *rsyncwire.Conn
	State State
}

// Run performs the handshake over rw against the named module, pulling
// path (the in-module sub-path; "" pulls the whole module), and returns
// the negotiated seed plus a Conn whose Reader has the envelope codec
// engaged.
func Run(rw io.ReadWriter, module, path string, logger *log.Logger) (*Result, error) {
	state := Fresh
	br := bufio.NewReaderSize(rw, 256*1024)

	state = TextHandshake
	if _, err := io.WriteString(rw, fmt.Sprintf("@RSYNCD: %d.0\n", rsync27.ProtocolVersion)); err != nil {
		return nil, fmt.Errorf("writing greeting: %w", err)
	}

	greeting, err := rsyncwire.ReadLine(br)
	if err != nil {
		return nil, fmt.Errorf("reading greeting: %w", err)
	}
	remoteMajor, err := parseGreeting(greeting)
	if err != nil {
		return nil, rsyncerr.NewProtocolError("invalid greeting "+strconv.Quote(greeting), err)
	}
	if remoteMajor < rsync27.ProtocolVersion {
		return nil, &rsyncerr.VersionTooOld{Remote: remoteMajor}
	}
	logger.Printf("server protocol version: %d", remoteMajor)

	if _, err := io.WriteString(rw, module+"\n"); err != nil {
		return nil, fmt.Errorf("writing module name: %w", err)
	}

	if err := drainMOTD(br, logger); err != nil {
		return nil, err
	}

	state = OptionsSent
	for _, opt := range serverOptions {
		if _, err := io.WriteString(rw, opt+"\n"); err != nil {
			return nil, fmt.Errorf("writing server option %q: %w", opt, err)
		}
	}
	if _, err := io.WriteString(rw, "."+"\n"); err != nil {
		return nil, fmt.Errorf("writing server option \".\": %w", err)
	}
	if path != "" {
		if _, err := io.WriteString(rw, path+"\n"); err != nil {
			return nil, fmt.Errorf("writing requested path: %w", err)
		}
	}
	if _, err := io.WriteString(rw, "\n"); err != nil {
		return nil, fmt.Errorf("writing options terminator: %w", err)
	}

	c := &rsyncwire.Conn{Reader: br, Writer: rw}
	seed, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading checksum seed: %w", err)
	}
	state = Seeded
	logger.Printf("checksum seed: %d", seed)

	// Empty exclusion/filter list; this client does not implement filter
	// rule emission beyond the terminator.
	if err := c.WriteInt32(0); err != nil {
		return nil, fmt.Errorf("writing exclusion-list terminator: %w", err)
	}

	mrd := &rsyncwire.MultiplexReader{
		Reader: br,
		Log:    logger,
	}
	c.Reader = bufio.NewReaderSize(mrd, 256*1024)
	state = Enveloped

	return &Result{Seed: seed, Conn: c, State: state}, nil
}

func parseGreeting(line string) (int, error) {
	const prefix = "@RSYNCD: "
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return 0, fmt.Errorf("greeting does not start with %q", prefix)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 0, fmt.Errorf("no version in greeting")
	}
	major := rest
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		major = rest[:idx]
	}
	return strconv.Atoi(major)
}

func drainMOTD(br *bufio.Reader, logger *log.Logger) error {
	for {
		line, err := rsyncwire.ReadLine(br)
		if err != nil {
			return fmt.Errorf("reading MOTD/status line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "@ERROR"):
			return &rsyncerr.ServerError{Line: line}
		case strings.HasPrefix(line, "@RSYNCD: AUTHREQD"):
			return &rsyncerr.AuthRequired{}
		case strings.HasPrefix(line, "@RSYNCD: OK"):
			return nil
		default:
			logger.Printf("motd: %s", line)
		}
	}
}
