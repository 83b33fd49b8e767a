package receiver

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/cmur2/rsyncpull/internal/filelist"
)

// pendingFile is a renameio.PendingFile writing to local: its final
// path only becomes visible once CloseAtomicallyReplace succeeds, so a
// receiver that dies mid-transfer never leaves a half-written file
// where the real name was expected.
type pendingFile = renameio.PendingFile

// newPendingFile creates a temp file alongside local for an atomic
// rename on success. It steps outside of any os.Root confinement
// (renameio has no Root-aware constructor yet), which is safe here
// because local was itself built from a name the generator already
// accepted as being inside the destination tree.
func newPendingFile(local string) (*pendingFile, error) {
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return nil, err
	}
	return renameio.NewPendingFile(local, renameio.WithPermissions(0o644))
}

// restoreMTime sets local's modification time to f's recorded value.
// os.Root has no utimes equivalent as of Go 1.24, so callers already
// step outside the confined root for this one operation, same as for
// the pending-file rename above.
func restoreMTime(local string, f *filelist.File) error {
	t := time.Unix(f.ModTime, 0)
	return os.Chtimes(local, t, t)
}
