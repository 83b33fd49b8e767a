package rsyncclient_test

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcloughlin/md4"

	rsync27 "github.com/cmur2/rsyncpull"
	"github.com/cmur2/rsyncpull/internal/log"
	"github.com/cmur2/rsyncpull/internal/rsyncwire"
	"github.com/cmur2/rsyncpull/rsyncclient"
)

func TestParseTarget(t *testing.T) {
	for _, tt := range []struct {
		raw     string
		want    rsyncclient.Target
		wantErr bool
	}{
		{
			raw:  "rsync://example.org/data",
			want: rsyncclient.Target{Host: "example.org", Port: rsyncclient.DefaultPort, Module: "data"},
		},
		{
			raw:  "rsync://example.org:8730/data/sub/dir",
			want: rsyncclient.Target{Host: "example.org", Port: 8730, Module: "data", Path: "sub/dir"},
		},
		{
			raw:     "http://example.org/data",
			wantErr: true,
		},
		{
			raw:     "rsync://example.org/",
			wantErr: true,
		},
	} {
		got, err := rsyncclient.ParseTarget(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTarget(%q): expected error, got none", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTarget(%q): unexpected error: %v", tt.raw, err)
		}
		if diff := cmp.Diff(tt.want, *got); diff != "" {
			t.Errorf("ParseTarget(%q): mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

// envConn frames every write as a multiplex data-tag frame, imitating
// how a real rsync daemon's writes look to the client once the
// handshake has engaged the envelope on the client's read side.
type envConn struct {
	w *rsyncwire.MultiplexWriter
}

func (e *envConn) Write(p []byte) (int, error) {
	if err := e.w.WriteMsg(rsyncwire.MsgData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// fakeServer plays the daemon/sender side of the protocol well enough
// to exercise a single-file pull: it offers one module containing one
// regular file with the given content, and always requests the whole
// file (no incremental/basis logic on the fake server's part).
func fakeServer(t *testing.T, rw io.ReadWriter, name string, content []byte) {
	t.Helper()
	br := bufio.NewReader(rw)

	if _, err := io.WriteString(rw, fmt.Sprintf("@RSYNCD: %d.0\n", rsync27.ProtocolVersion)); err != nil {
		t.Errorf("fakeServer: writing greeting: %v", err)
		return
	}
	if _, err := rsyncwire.ReadLine(br); err != nil { // module name
		t.Errorf("fakeServer: reading module name: %v", err)
		return
	}
	if _, err := io.WriteString(rw, "@RSYNCD: OK\n"); err != nil {
		t.Errorf("fakeServer: writing OK: %v", err)
		return
	}

	// Drain server-option lines, the "." path-list terminator, any
	// requested sub-path, and the blank options terminator.
	for {
		line, err := rsyncwire.ReadLine(br)
		if err != nil {
			t.Errorf("fakeServer: reading option line: %v", err)
			return
		}
		if line == "" {
			break
		}
	}

	plain := &rsyncwire.Conn{Reader: br, Writer: rw}
	const seed = int32(0x1234)
	if err := plain.WriteInt32(seed); err != nil {
		t.Errorf("fakeServer: writing seed: %v", err)
		return
	}
	if _, err := plain.ReadInt32(); err != nil { // exclusion-list terminator
		t.Errorf("fakeServer: reading exclusion terminator: %v", err)
		return
	}

	mw := &rsyncwire.MultiplexWriter{Writer: rw}
	c := &rsyncwire.Conn{Reader: br, Writer: &envConn{w: mw}}

	// One file-list entry: FlagLongName set, no inheritance.
	const flagLongName = 0x40
	if err := c.WriteByte(flagLongName); err != nil {
		t.Errorf("fakeServer: writing entry flags: %v", err)
		return
	}
	if err := c.WriteUint32(uint32(len(name))); err != nil {
		t.Errorf("fakeServer: writing name length: %v", err)
		return
	}
	if _, err := c.Writer.Write([]byte(name)); err != nil {
		t.Errorf("fakeServer: writing name: %v", err)
		return
	}
	if err := c.WriteInt64(int64(len(content))); err != nil {
		t.Errorf("fakeServer: writing length: %v", err)
		return
	}
	if err := c.WriteUint32(uint32(time.Now().Unix())); err != nil {
		t.Errorf("fakeServer: writing mtime: %v", err)
		return
	}
	const modeReg = 0o100644
	if err := c.WriteUint32(modeReg); err != nil {
		t.Errorf("fakeServer: writing mode: %v", err)
		return
	}
	if err := c.WriteByte(0); err != nil { // file-list terminator
		t.Errorf("fakeServer: writing file-list terminator: %v", err)
		return
	}
	if err := c.WriteInt32(0); err != nil { // io_error_count
		t.Errorf("fakeServer: writing io_error_count: %v", err)
		return
	}

	// Generator phase: read (idx, SumHead) until two -1 sentinels.
	var requests []int32
	for phase := 0; phase < 2; {
		idx, err := c.ReadInt32()
		if err != nil {
			t.Errorf("fakeServer: reading generator request: %v", err)
			return
		}
		if idx == -1 {
			phase++
			continue
		}
		var sh rsync27.SumHead
		if err := sh.ReadFrom(c); err != nil {
			t.Errorf("fakeServer: reading sum head: %v", err)
			return
		}
		requests = append(requests, idx)
	}

	// Respond to every request with a whole-file literal token stream
	// plus the seeded MD4 of the content, then the two phase sentinels.
	for _, idx := range requests {
		if err := c.WriteInt32(idx); err != nil {
			t.Errorf("fakeServer: writing response index: %v", err)
			return
		}
		var empty rsync27.SumHead
		if err := empty.WriteTo(c); err != nil {
			t.Errorf("fakeServer: writing echoed sum head: %v", err)
			return
		}
		if err := c.WriteInt32(int32(len(content))); err != nil {
			t.Errorf("fakeServer: writing data token length: %v", err)
			return
		}
		if _, err := c.Writer.Write(content); err != nil {
			t.Errorf("fakeServer: writing data token payload: %v", err)
			return
		}
		if err := c.WriteInt32(0); err != nil { // Done token
			t.Errorf("fakeServer: writing done token: %v", err)
			return
		}
		h := md4.New()
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
		h.Write(seedBytes[:])
		h.Write(content)
		if _, err := c.Writer.Write(h.Sum(nil)); err != nil {
			t.Errorf("fakeServer: writing whole-file checksum: %v", err)
			return
		}
	}
	if err := c.WriteInt32(-1); err != nil {
		t.Errorf("fakeServer: writing phase-1 sentinel: %v", err)
		return
	}
	if err := c.WriteInt32(-1); err != nil {
		t.Errorf("fakeServer: writing phase-2 sentinel: %v", err)
		return
	}

	for _, v := range []int64{int64(len(content)), int64(len(content)), int64(len(content))} {
		if err := c.WriteInt64(v); err != nil {
			t.Errorf("fakeServer: writing stats: %v", err)
			return
		}
	}

	if _, err := plain.ReadInt32(); err != nil { // client's final goodbye; arrives unenveloped from the writer's view
		t.Errorf("fakeServer: reading client goodbye: %v", err)
		return
	}
}

func TestClientRunSingleFile(t *testing.T) {
	clientReadsFrom, serverWritesTo := io.Pipe()
	serverReadsFrom, clientWritesTo := io.Pipe()
	clientRW := &struct {
		io.Reader
		io.Writer
	}{Reader: clientReadsFrom, Writer: clientWritesTo}
	serverRW := &struct {
		io.Reader
		io.Writer
	}{Reader: serverReadsFrom, Writer: serverWritesTo}

	const content = "hello from the fake rsync daemon\n"
	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeServer(t, serverRW, "greeting.txt", []byte(content))
	}()

	dest := t.TempDir()
	client := rsyncclient.New(rsyncclient.WithLogger(log.Discard), rsyncclient.WithVerbose(true))
	stats, err := client.Run(context.Background(), clientRW, "data", "", dest)
	<-done
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Size != int64(len(content)) {
		t.Errorf("stats.Size = %d, want %d", stats.Size, len(content))
	}

	got, err := os.ReadFile(filepath.Join(dest, "greeting.txt"))
	if err != nil {
		t.Fatalf("reading transferred file: %v", err)
	}
	if strings.TrimRight(string(got), "\n") != strings.TrimRight(content, "\n") {
		t.Errorf("transferred content = %q, want %q", got, content)
	}
}
