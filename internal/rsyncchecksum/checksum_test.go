package rsyncchecksum

import (
	"bytes"
	"testing"
)

func TestChecksum1KnownValue(t *testing.T) {
	// Computed by hand via the sequential single-byte update rule
	// (s1 += b; s2 += s1) with CHAR_OFFSET == 0.
	block := []byte{1, 2, 3, 4, 5}
	var s1, s2 uint32
	for _, b := range block {
		s1 += uint32(b)
		s2 += s1
	}
	want := s1&0xffff | (s2 << 16)

	if got := Checksum1(block); got != want {
		t.Errorf("Checksum1(%v) = %#x, want %#x", block, got, want)
	}
}

func TestChecksum1EmptyBlock(t *testing.T) {
	if got := Checksum1(nil); got != 0 {
		t.Errorf("Checksum1(nil) = %#x, want 0", got)
	}
}

func TestChecksum2DependsOnSeed(t *testing.T) {
	block := []byte("a block of file content")
	a := Checksum2(1, block)
	b := Checksum2(2, block)
	if bytes.Equal(a, b) {
		t.Error("Checksum2 produced the same digest for two different seeds")
	}
	if len(a) != StrongLen {
		t.Errorf("len(Checksum2(...)) = %d, want %d", len(a), StrongLen)
	}
}

func TestChecksum2Deterministic(t *testing.T) {
	block := []byte("a block of file content")
	if !bytes.Equal(Checksum2(7, block), Checksum2(7, block)) {
		t.Error("Checksum2 is not deterministic for the same seed and block")
	}
}

func TestSumSizesSqrootEmptyFile(t *testing.T) {
	if got := SumSizesSqroot(0); got != (SumHeadParams{}) {
		t.Errorf("SumSizesSqroot(0) = %+v, want zero value", got)
	}
}

func TestSumSizesSqrootInvariant(t *testing.T) {
	for _, fileLen := range []int64{1, 17, 700, 1000, 1 << 20, 1<<20 + 1, 12345678} {
		p := SumSizesSqroot(fileLen)
		if p.BlockLen == 0 {
			t.Fatalf("SumSizesSqroot(%d): BlockLen == 0", fileLen)
		}
		// Rounding happens before the lower clamp, so a clamped length is
		// exactly blockSize (700), which is not a multiple of blockGranularity.
		if p.BlockLen != blockSize && p.BlockLen%blockGranularity != 0 {
			t.Errorf("SumSizesSqroot(%d): BlockLen=%d not a multiple of %d", fileLen, p.BlockLen, blockGranularity)
		}
		if p.BlockLen < blockSize {
			t.Errorf("SumSizesSqroot(%d): BlockLen=%d below the minimum %d", fileLen, p.BlockLen, blockSize)
		}
		total := int64(p.ChecksumCount-1)*int64(p.BlockLen) + int64(p.RemainderLen)
		if p.RemainderLen == 0 {
			total = int64(p.ChecksumCount) * int64(p.BlockLen)
		}
		if total != fileLen {
			t.Errorf("SumSizesSqroot(%d): blocks account for %d bytes, want %d", fileLen, total, fileLen)
		}
	}
}

func TestIsqrt(t *testing.T) {
	for n, want := range map[uint64]uint64{0: 0, 1: 1, 2: 2, 4: 2, 5: 3, 9: 3, 10: 4, 1000000: 1000} {
		if got := isqrt(n); got != want {
			t.Errorf("isqrt(%d) = %d, want %d", n, got, want)
		}
	}
}
