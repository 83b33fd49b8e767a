package receiver

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"

	rsync27 "github.com/cmur2/rsyncpull"
	"github.com/cmur2/rsyncpull/internal/filelist"
	"github.com/cmur2/rsyncpull/internal/rsyncchecksum"
)

// GenerateFiles walks fileList in index order, decides each entry's
// transfer action, and writes the corresponding wire records, then
// writes the two phase-terminator sentinels (rsync/generator.c:
// generate_files). It never reads from the connection: the generator
// and receiver communicate only through the two halves of the socket,
// never with each other directly.
func (rt *Transfer) GenerateFiles(fileList []*filelist.File) error {
	for _, f := range fileList {
		if err := rt.generateOne(f); err != nil {
			return err
		}
	}

	if rt.Opts.Verbose {
		rt.Logger.Printf("generator: phase 1 done")
	}
	if err := rt.Conn.WriteInt32(-1); err != nil {
		return err
	}

	// Phase 2 would re-request files that failed during phase 1; this
	// client does not retry, so it only emits the sentinel.
	if rt.Opts.Verbose {
		rt.Logger.Printf("generator: phase 2 done")
	}
	if err := rt.Conn.WriteInt32(-1); err != nil {
		return err
	}

	return nil
}

func (rt *Transfer) generateOne(f *filelist.File) error {
	name := f.Name

	switch {
	case f.IsDir():
		if name == "." {
			return nil
		}
		if rt.Opts.DryRun {
			return nil
		}
		return mkdirAllInRoot(rt.DestRoot, name)

	case !f.IsRegular():
		// Symlinks, devices, sockets, fifos: skip silently. Symlink
		// materialization is out of scope for this client.
		return nil
	}

	st, statErr := rt.DestRoot.Stat(name)
	if statErr == nil && st.Mode().IsRegular() &&
		st.Size() == f.Length && mtimeEqualSeconds(st.ModTime().Unix(), f.ModTime) {
		return nil // local copy is already current
	}
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return statErr
	}

	if rt.Opts.DryRun {
		if rt.Opts.Verbose {
			rt.Logger.Printf("would transfer %s", name)
		}
		return nil
	}

	if err := rt.Conn.WriteInt32(f.Idx); err != nil {
		return err
	}

	basis, err := rt.DestRoot.Open(name)
	if err != nil {
		if rt.Opts.Verbose {
			rt.Logger.Printf("%s: no usable basis file (%v), requesting whole file", name, err)
		}
		var empty rsync27.SumHead
		return empty.WriteTo(rt.Conn)
	}
	defer basis.Close()

	info, err := basis.Stat()
	if err != nil {
		return err
	}
	if rt.Opts.Verbose {
		rt.Logger.Printf("%s: requesting incremental transfer against local copy", name)
	}
	return rt.generateSums(basis, info.Size())
}

// generateSums computes a SumHead for a basis file of length fileLen via
// the square-root heuristic, writes it, then streams one
// (rolling-checksum, strong-checksum) pair per block read from basis
// (rsync/generator.c:generate_and_send_sums).
func (rt *Transfer) generateSums(basis io.Reader, fileLen int64) error {
	params := rsyncchecksum.SumSizesSqroot(fileLen)

	sh := rsync27.SumHead{
		ChecksumCount: params.ChecksumCount,
		BlockLength:   params.BlockLen,
		ChecksumLen:   rsyncchecksum.StrongLen,
		RemainderLen:  params.RemainderLen,
	}
	if err := sh.WriteTo(rt.Conn); err != nil {
		return err
	}

	buf := make([]byte, params.BlockLen)
	remaining := fileLen
	for i := uint32(0); i < params.ChecksumCount; i++ {
		n := int64(params.BlockLen)
		if remaining < n {
			n = remaining
		}
		block := buf[:n]
		if _, err := io.ReadFull(basis, block); err != nil {
			return err
		}
		remaining -= n

		sum1 := rsyncchecksum.Checksum1(block)
		if err := rt.Conn.WriteUint32(sum1); err != nil {
			return err
		}
		sum2 := rsyncchecksum.Checksum2(rt.Seed, block)
		if _, err := rt.Conn.Writer.Write(sum2); err != nil {
			return err
		}
	}

	return nil
}

func mtimeEqualSeconds(localUnixSeconds, remoteUnixSeconds int64) bool {
	return localUnixSeconds == remoteUnixSeconds
}

// mkdirAllInRoot creates name and all of its parents inside root,
// tolerating components that already exist. os.Root (Go 1.24) has no
// MkdirAll of its own, so this mirrors it one path component at a time.
func mkdirAllInRoot(root interface {
	Mkdir(name string, perm fs.FileMode) error
}, name string) error {
	name = path.Clean(name)
	if name == "." || name == "/" {
		return nil
	}
	var built strings.Builder
	for _, part := range strings.Split(name, "/") {
		if part == "" {
			continue
		}
		if built.Len() > 0 {
			built.WriteByte('/')
		}
		built.WriteString(part)
		if err := root.Mkdir(built.String(), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}
