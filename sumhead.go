package rsync27

import "github.com/cmur2/rsyncpull/internal/rsyncwire"

// SumHead is the per-file block-checksum descriptor (rsync's sum_struct,
// rsync/rsync.h) the generator sends ahead of its block checksums, and
// the receiver reads before decoding the token stream for that file.
// The all-zero value means "no basis, send the whole file".
type SumHead struct {
	ChecksumCount uint32
	BlockLength   uint32
	ChecksumLen   uint32
	RemainderLen  uint32
}

// ReadFrom reads a SumHead from c, in the order the protocol transmits
// the four fields.
func (sh *SumHead) ReadFrom(c *rsyncwire.Conn) error {
	var err error
	if sh.ChecksumCount, err = c.ReadUint32(); err != nil {
		return err
	}
	if sh.BlockLength, err = c.ReadUint32(); err != nil {
		return err
	}
	if sh.ChecksumLen, err = c.ReadUint32(); err != nil {
		return err
	}
	if sh.RemainderLen, err = c.ReadUint32(); err != nil {
		return err
	}
	return nil
}

// WriteTo writes sh to c.
func (sh *SumHead) WriteTo(c *rsyncwire.Conn) error {
	if err := c.WriteUint32(sh.ChecksumCount); err != nil {
		return err
	}
	if err := c.WriteUint32(sh.BlockLength); err != nil {
		return err
	}
	if err := c.WriteUint32(sh.ChecksumLen); err != nil {
		return err
	}
	return c.WriteUint32(sh.RemainderLen)
}

// Empty reports whether sh is the all-zero "send whole file" sentinel.
func (sh SumHead) Empty() bool {
	return sh == SumHead{}
}

// BlockSize returns the length of block index i: BlockLength for every
// block except the last, which is RemainderLen bytes long if
// RemainderLen is non-zero.
func (sh SumHead) BlockSize(i uint32) uint32 {
	if i == sh.ChecksumCount-1 && sh.RemainderLen != 0 {
		return sh.RemainderLen
	}
	return sh.BlockLength
}
