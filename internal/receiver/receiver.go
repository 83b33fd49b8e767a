package receiver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mmcloughlin/md4"

	rsync27 "github.com/cmur2/rsyncpull"
	"github.com/cmur2/rsyncpull/internal/filelist"
	"github.com/cmur2/rsyncpull/internal/rsyncchecksum"
	"github.com/cmur2/rsyncpull/internal/rsyncerr"
	"github.com/cmur2/rsyncpull/internal/rsyncwire"
)

// token is one element of a file's delta stream: exactly one of Data,
// Copy (IsCopy true), or Done is meaningful at a time (rsync/token.c's
// simple_send/simple_recv token framing).
type token struct {
	Data   []byte // literal bytes, non-empty
	Copy   uint32 // basis block index, valid iff IsCopy
	IsCopy bool
	Done   bool
}

// DecodeToken reads one wire-encoded token from c: t == 0 is Done,
// t > 0 is Data of length t, t < 0 is Copied(-t-1) (rsync/receiver.c:
// recv_files' token loop).
func DecodeToken(c *rsyncwire.Conn) (token, error) {
	t, err := c.ReadInt32()
	if err != nil {
		return token{}, err
	}
	switch {
	case t == 0:
		return token{Done: true}, nil
	case t > 0:
		data, err := c.ReadN(int(t))
		if err != nil {
			return token{}, err
		}
		return token{Data: data}, nil
	default:
		return token{IsCopy: true, Copy: uint32(-(t + 1))}, nil
	}
}

// EncodeToken writes tok to c using the same encoding DecodeToken
// reads, exported so the token wire format's round-trip property
// (encode then decode yields the original) is testable without a live
// connection.
func EncodeToken(c *rsyncwire.Conn, tok token) error {
	switch {
	case tok.Done:
		return c.WriteInt32(0)
	case tok.IsCopy:
		return c.WriteInt32(-(int32(tok.Copy) + 1))
	default:
		if err := c.WriteInt32(int32(len(tok.Data))); err != nil {
			return err
		}
		_, err := c.Writer.Write(tok.Data)
		return err
	}
}

// RecvFiles reads (index, token-stream) groups until the second phase
// sentinel, reconstructing each named file (rsync/receiver.c:recv_files).
func (rt *Transfer) RecvFiles(fileList []*filelist.File) error {
	phase := 0
	for {
		idx, err := rt.Conn.ReadInt32()
		if err != nil {
			return err
		}
		if idx == -1 {
			if phase == 0 {
				phase++
				if rt.Opts.Verbose {
					rt.Logger.Printf("receiver: phase %d", phase)
				}
				continue
			}
			break
		}
		if idx < 0 || int(idx) >= len(fileList) {
			return &rsyncerr.InternalInvariant{Context: fmt.Sprintf("file index %d out of range (have %d entries)", idx, len(fileList))}
		}

		f := fileList[idx]
		if rt.Opts.Verbose {
			rt.Logger.Printf("receiving %s (idx=%d)", f.Name, idx)
		}
		if err := rt.recvOne(f); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	if rt.Opts.Verbose {
		rt.Logger.Printf("receiver: finished")
	}
	return nil
}

func (rt *Transfer) recvOne(f *filelist.File) error {
	var sh rsync27.SumHead
	if err := sh.ReadFrom(rt.Conn); err != nil {
		return fmt.Errorf("reading sum head: %w", err)
	}

	if rt.Opts.DryRun {
		return rt.drainTokens(f)
	}

	basis, basisErr := rt.DestRoot.Open(f.Name)
	hasBasis := basisErr == nil
	if basis != nil {
		defer basis.Close()
	}

	local := filepath.Join(rt.Dest, f.Name)
	pf, err := newPendingFile(local)
	if err != nil {
		return rsyncerr.NewFilesystemError("create", f.Name, err)
	}
	defer pf.Cleanup()

	h := md4.New()
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(rt.Seed))
	h.Write(seedBytes[:])

	w := io.MultiWriter(pf, h)

	for {
		tok, err := DecodeToken(rt.Conn)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if tok.Done {
			break
		}
		if !tok.IsCopy {
			if _, err := w.Write(tok.Data); err != nil {
				return rsyncerr.NewFilesystemError("write", f.Name, err)
			}
			continue
		}
		if !hasBasis {
			return &rsyncerr.MissingBasis{Name: f.Name}
		}
		length := sh.BlockSize(tok.Copy)
		offset := int64(tok.Copy) * int64(sh.BlockLength)
		block := make([]byte, length)
		if _, err := basis.ReadAt(block, offset); err != nil {
			return rsyncerr.NewFilesystemError("read basis", f.Name, err)
		}
		if _, err := w.Write(block); err != nil {
			return rsyncerr.NewFilesystemError("write", f.Name, err)
		}
	}

	localSum := h.Sum(nil)
	remoteSum, err := rt.Conn.ReadN(rsyncchecksum.StrongLen)
	if err != nil {
		return fmt.Errorf("reading whole-file checksum: %w", err)
	}
	if !bytes.Equal(localSum, remoteSum) {
		return &rsyncerr.ChecksumMismatch{Name: f.Name}
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return rsyncerr.NewFilesystemError("rename", f.Name, err)
	}

	return restoreMTime(local, f)
}

// drainTokens consumes a file's token stream and trailing checksum
// without writing anything, for -n/--dry-run mode: the protocol must
// still be driven forward exactly as it would be for a real transfer.
func (rt *Transfer) drainTokens(f *filelist.File) error {
	for {
		tok, err := DecodeToken(rt.Conn)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		if tok.Done {
			break
		}
	}
	if _, err := rt.Conn.ReadN(rsyncchecksum.StrongLen); err != nil {
		return fmt.Errorf("reading whole-file checksum: %w", err)
	}
	if rt.Opts.Verbose {
		rt.Logger.Printf("would update %s", f.Name)
	}
	return nil
}
