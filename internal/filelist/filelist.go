// Package filelist decodes the run-length-compressed stream of directory
// entries an rsync daemon sends after the handshake (rsync/flist.c:
// receive_file_entry): one flag byte per entry, selectively inheriting
// fields (and a prefix of the name) from the entry immediately before
// it, terminated by a zero flag byte.
package filelist

import (
	"fmt"
	"sort"

	rsync27 "github.com/cmur2/rsyncpull"
	"github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/rsyncerr"
	"github.com/cmur2/rsyncpull/internal/rsyncwire"
)

// File is one decoded file-list entry. Name, Mode, ModTime and Length
// describe any of a regular file, a directory, or a symlink; LinkTarget
// is set only when Mode indicates a symlink. Idx is assigned after
// sorting and deduplication and is stable for the lifetime of the
// transfer.
type File struct {
	Name       string
	Length     int64
	ModTime    int64 // seconds since the Unix epoch, UTC
	Mode       uint32
	LinkTarget string // only valid if IsSymlink()
	Idx        int32
}

func (f *File) IsDir() bool     { return f.Mode&unixModeFmt == unixModeDir }
func (f *File) IsRegular() bool { return f.Mode&unixModeFmt == unixModeReg }
func (f *File) IsSymlink() bool { return f.Mode&unixModeFmt == unixModeLnk }

// POSIX mode format bits (S_IFMT and friends), duplicated here rather
// than imported from a platform package because the value arrives over
// the wire and must be interpreted the same way regardless of the local
// OS the client runs on.
const (
	unixModeFmt = 0o170000
	unixModeDir = 0o040000
	unixModeReg = 0o100000
	unixModeLnk = 0o120000
)

// Receive reads entries until a zero flag byte, then sorts them by name,
// removes adjacent duplicates (keeping the first), and assigns dense
// 0-based indices in that order (rsync/flist.c:flist_sort_and_clean). It
// then reads and logs (non-fatally) the server's io_error_count.
func Receive(c *rsyncwire.Conn, logger *log.Logger) ([]*File, error) {
	var list []*File
	var nameScratch []byte
	var prev *File

	for {
		flags, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading file-list flag byte: %w", err)
		}
		if flags == 0 {
			break
		}

		entry, err := receiveEntry(c, flags, &nameScratch, prev)
		if err != nil {
			return nil, err
		}
		list = append(list, entry)
		prev = entry
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	deduped := list[:0]
	for i, f := range list {
		if i > 0 && f.Name == deduped[len(deduped)-1].Name {
			continue
		}
		deduped = append(deduped, f)
	}
	for i, f := range deduped {
		f.Idx = int32(i)
	}

	ioErrors, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading io_error_count: %w", err)
	}
	if ioErrors != 0 {
		logger.Printf("server reported %d I/O error(s) while building the file list", ioErrors)
	}

	return deduped, nil
}

func receiveEntry(c *rsyncwire.Conn, flags byte, nameScratch *[]byte, prev *File) (*File, error) {
	sameName := flags&rsync27.FlagSameName != 0
	longName := flags&rsync27.FlagLongName != 0
	sameTime := flags&rsync27.FlagSameTime != 0
	sameMode := flags&rsync27.FlagSameMode != 0

	var inheritLen int
	if sameName {
		b, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading inherited-name length: %w", err)
		}
		inheritLen = int(b)
	}

	var suffixLen int
	if longName {
		v, err := c.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading long name length: %w", err)
		}
		suffixLen = int(v)
	} else {
		b, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading name length: %w", err)
		}
		suffixLen = int(b)
	}

	if inheritLen+suffixLen > rsync27.MaxPathLength {
		return nil, &rsyncerr.PathTooLong{InheritLen: inheritLen, SuffixLen: suffixLen}
	}
	if inheritLen > len(*nameScratch) {
		return nil, &rsyncerr.InternalInvariant{Context: "inherited name length exceeds scratch buffer"}
	}

	*nameScratch = (*nameScratch)[:inheritLen]
	suffix, err := c.ReadN(suffixLen)
	if err != nil {
		return nil, fmt.Errorf("reading name suffix: %w", err)
	}
	*nameScratch = append(*nameScratch, suffix...)
	name := string(*nameScratch)

	length, err := c.ReadInt64()
	if err != nil {
		return nil, fmt.Errorf("reading file length: %w", err)
	}

	var modTime int64
	if sameTime {
		if prev == nil {
			return nil, &rsyncerr.InternalInvariant{Context: "SAME_TIME flag with no previous entry"}
		}
		modTime = prev.ModTime
	} else {
		v, err := c.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading mtime: %w", err)
		}
		modTime = int64(v)
	}

	var mode uint32
	if sameMode {
		if prev == nil {
			return nil, &rsyncerr.InternalInvariant{Context: "SAME_MODE flag with no previous entry"}
		}
		mode = prev.Mode
	} else {
		v, err := c.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading mode: %w", err)
		}
		mode = v
	}

	f := &File{
		Name:    name,
		Length:  length,
		ModTime: modTime,
		Mode:    mode,
	}

	if f.IsSymlink() {
		targetLen, err := c.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading link-target length: %w", err)
		}
		target, err := c.ReadN(int(targetLen))
		if err != nil {
			return nil, fmt.Errorf("reading link target: %w", err)
		}
		f.LinkTarget = string(target)
	}

	// uid/gid/rdev are not read: this client's fixed server-options
	// string (-ltpr) never requests --owner/--group/--devices, so the
	// server never sends those fields.

	return f, nil
}
