//go:build linux

// Package restrict optionally confines the pull client's filesystem
// access to its destination directory (and the directories DNS
// resolution needs) using Linux landlock, adapted from the teacher's
// internal/restrict package, which confines an rsync daemon to its
// configured modules the same way.
package restrict

import (
	"fmt"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// As of Go 1.24, the net package's Go resolver reads these files.
var dnsLookup = []string{
	"/etc/resolv.conf",
	"/etc/hosts",
	"/etc/nsswitch.conf",
}

// Destination restricts the running process to read/write files only
// under dest (plus read-only DNS configuration, in case the dial
// hasn't happened yet). It is best-effort: on kernels without landlock
// support it silently degrades to "no restriction" rather than failing
// the transfer, matching the landlock.V3.BestEffort() semantics the
// teacher relies on.
//
// Landlock rules are irrevocable for the lifetime of the process, so
// callers invoke this only once dest exists and nothing outside it is
// needed any more; cmd/rsyncpull calls it right after dialing and
// creating dest, before the handshake starts.
func Destination(dest string) error {
	err := landlock.V3.BestEffort().RestrictPaths(
		landlock.ROFiles(dnsLookup...).IgnoreIfMissing(),
		landlock.RWDirs(dest).WithRefer(),
	)
	if err != nil {
		return fmt.Errorf("landlock: %w", err)
	}
	return nil
}
