// Package rsyncwire implements the buffered, byte-counted read/write
// primitives the rsync wire protocol is built from, plus the multiplex
// envelope codec that interposes on the read side once the handshake
// completes (see multiplex.go).
package rsyncwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// CountingReader wraps an io.Reader and tracks the number of bytes read
// through it, so a caller can report transfer statistics independent of
// protocol framing overhead.
type CountingReader struct {
	R       io.Reader
	Counter int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.Counter += int64(n)
	return n, err
}

// CountingWriter wraps an io.Writer and tracks the number of bytes
// written through it.
type CountingWriter struct {
	W       io.Writer
	Counter int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.Counter += int64(n)
	return n, err
}

// CounterPair wraps r and w in a CountingReader/CountingWriter,
// returning both so callers can report bytes transferred.
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}

// Conn is a little-endian, length-prefixed integer/byte/line codec over
// a Reader/Writer pair. Before the envelope is engaged, Reader is a plain
// buffered reader over the socket; after handshake.Run returns, it
// is a *bufio.Reader wrapping a *MultiplexReader.
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

// ReadByte reads a single byte.
func (c *Conn) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c.Reader, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteByte writes a single byte.
func (c *Conn) WriteByte(b byte) error {
	_, err := c.Writer.Write([]byte{b})
	return err
}

// ReadN reads exactly n bytes.
func (c *Conn) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.Reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInt32 reads a little-endian signed 32-bit integer.
func (c *Conn) ReadInt32() (int32, error) {
	var v int32
	if err := binary.Read(c.Reader, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteInt32 writes a little-endian signed 32-bit integer.
func (c *Conn) WriteInt32(v int32) error {
	return binary.Write(c.Writer, binary.LittleEndian, v)
}

// ReadUint32 reads a little-endian unsigned 32-bit integer.
func (c *Conn) ReadUint32() (uint32, error) {
	var v uint32
	if err := binary.Read(c.Reader, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteUint32 writes a little-endian unsigned 32-bit integer.
func (c *Conn) WriteUint32(v uint32) error {
	return binary.Write(c.Writer, binary.LittleEndian, v)
}

// ReadInt64 reads an rsync-long: a 32-bit value where the sentinel
// 0xFFFFFFFF means "a 64-bit little-endian value follows"; any other
// 32-bit value is the unsigned value itself (never negative here, since
// rsync-longs encode non-negative lengths/counters).
func (c *Conn) ReadInt64() (int64, error) {
	v, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	if v != 0xFFFFFFFF {
		return int64(v), nil
	}
	var v64 int64
	if err := binary.Read(c.Reader, binary.LittleEndian, &v64); err != nil {
		return 0, err
	}
	return v64, nil
}

// WriteInt64 writes v using the rsync-long encoding: values that fit in
// an unsigned 32-bit integer (and are not the 0xFFFFFFFF sentinel) are
// written as 32 bits; larger values (and exactly 0xFFFFFFFF) are written
// as the sentinel followed by 64 bits.
func (c *Conn) WriteInt64(v int64) error {
	if v >= 0 && v < 0xFFFFFFFF {
		return c.WriteUint32(uint32(v))
	}
	if err := c.WriteUint32(0xFFFFFFFF); err != nil {
		return err
	}
	return binary.Write(c.Writer, binary.LittleEndian, v)
}

// ReadLine reads one line, stripping the trailing newline. Used only
// during the unframed text handshake.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading line: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
