// Package rsyncchecksum implements the two per-block checksum functions
// the generator emits and the sum-size heuristic that picks a block
// length for a given file length. These are pure functions over byte
// slices, factored out of the generator (rsync/checksum.c,
// rsync/generator.c) so they're directly testable in isolation, the way
// _examples/original_source/src/chksum.rs separates them from
// generator.rs/recv.rs.
package rsyncchecksum

import (
	"encoding/binary"

	"github.com/mmcloughlin/md4"
)

// StrongLen is the length, in bytes, of the truncated MD4 strong
// checksum protocol 27 uses. Later protocol versions use a different
// length and hash; this client only speaks 27.
const StrongLen = 16

// rollingCharOffset is the classic rsync rolling-checksum additive
// constant (CHAR_OFFSET in rsync/checksum.c), folded into the low half
// so that later byte-wise slides on the remote side stay consistent with
// this implementation's initial computation. The client itself never
// slides; it computes each block from scratch.
const rollingCharOffset = 0

// Checksum1 computes the weak rolling checksum ("checksum-1") over
// block, rsync's two-half running sum (rsync/checksum.c:get_checksum1):
// s1 is the sum of bytes, s2 is the running sum of partial sums, packed
// as (s1 & 0xffff) | s2<<16 in uint32 space so the remote side can recompute it
// incrementally by sliding one byte at a time. The client only ever
// computes it over a fixed block, never slides it.
func Checksum1(block []byte) uint32 {
	var s1, s2 uint32
	n := len(block)
	i := 0
	for ; i+4 <= n; i += 4 {
		s2 += 4*(s1+uint32(block[i])) + 3*uint32(block[i+1]) + 2*uint32(block[i+2]) + uint32(block[i+3]) + 10*rollingCharOffset
		s1 += uint32(block[i]) + uint32(block[i+1]) + uint32(block[i+2]) + uint32(block[i+3]) + 4*rollingCharOffset
	}
	for ; i < n; i++ {
		s1 += uint32(block[i]) + rollingCharOffset
		s2 += s1
	}
	return s1&0xffff | (s2 << 16)
}

// Checksum2 computes the strong checksum ("checksum-2") over block: MD4
// of the 4-byte little-endian seed followed by the block bytes,
// truncated to StrongLen (already 16 for protocol 27, so this is a
// no-op truncation, kept explicit for when other protocol versions pick
// a shorter length).
func Checksum2(seed int32, block []byte) []byte {
	h := md4.New()
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
	h.Write(seedBytes[:])
	h.Write(block)
	sum := h.Sum(nil)
	if len(sum) > StrongLen {
		sum = sum[:StrongLen]
	}
	return sum
}

// blockSize is the minimum block length rsync ever picks (rsync/rsync.h:
// BLOCK_SIZE), used as the lower clamp. It is applied after rounding, so
// a clamped block length is 700 exactly, not a multiple of
// blockGranularity.
const blockSize = 700

// blockGranularity is the multiple block_len is rounded to.
const blockGranularity = 8

// maxBlockSize is the upper clamp on block_len.
const maxBlockSize = 1 << 29

// SumHeadParams is the (block_len, checksum_count, remainder_len) result
// of the square-root heuristic; checksum_len is always StrongLen for
// protocol 27.
type SumHeadParams struct {
	BlockLen      uint32
	ChecksumCount uint32
	RemainderLen  uint32
}

// SumSizesSqroot picks a block length for a basis file of the given
// length using rsync's square-root heuristic (rsync/generator.c:
// sum_sizes_sqroot): block_len is approximately sqrt(fileLen), rounded up
// to a multiple of blockGranularity, clamped to [blockSize, maxBlockSize].
// The empty file (fileLen == 0) yields the zero value, which callers
// should treat the same as "no basis, send whole file".
func SumSizesSqroot(fileLen int64) SumHeadParams {
	if fileLen <= 0 {
		return SumHeadParams{}
	}

	blockLen := isqrt(uint64(fileLen))
	// Round up to a multiple of blockGranularity.
	if rem := blockLen % blockGranularity; rem != 0 {
		blockLen += blockGranularity - rem
	}
	if blockLen < blockSize {
		blockLen = blockSize
	}
	if blockLen > maxBlockSize {
		blockLen = maxBlockSize
	}

	count := uint64(fileLen) / uint64(blockLen)
	remainder := uint64(fileLen) % uint64(blockLen)
	if remainder != 0 {
		count++
	}

	return SumHeadParams{
		BlockLen:      uint32(blockLen),
		ChecksumCount: uint32(count),
		RemainderLen:  uint32(remainder),
	}
}

// isqrt returns ceil(sqrt(n)) for n >= 0, using integer arithmetic only
// so the heuristic is bit-exact across platforms (no float rounding
// surprises near perfect squares).
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	// x is now floor(sqrt(n)); round up if not exact.
	if x*x < n {
		x++
	}
	return x
}
