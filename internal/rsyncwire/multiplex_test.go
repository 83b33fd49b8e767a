package rsyncwire

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

type collectingSink struct {
	lines []string
}

func (s *collectingSink) Print(v ...any) {
	s.lines = append(s.lines, v[0].(string))
}

func TestMultiplexReaderInterleavedLogFrames(t *testing.T) {
	var wire bytes.Buffer
	mw := &MultiplexWriter{Writer: &wire}

	if err := mw.WriteMsg(MsgInfo, []byte("starting up")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteMsg(MsgData, []byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteMsg(MsgLog, []byte("a log line")); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteMsg(MsgData, []byte("world")); err != nil {
		t.Fatal(err)
	}

	sink := &collectingSink{}
	mr := &MultiplexReader{Reader: &wire, Log: sink}

	got, err := io.ReadAll(bufio.NewReader(mr))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("demultiplexed data = %q, want %q", got, "hello world")
	}
	want := []string{"starting up", "a log line"}
	if len(sink.lines) != len(want) {
		t.Fatalf("log lines = %v, want %v", sink.lines, want)
	}
	for i, w := range want {
		if sink.lines[i] != w {
			t.Errorf("log line %d = %q, want %q", i, sink.lines[i], w)
		}
	}
}

func TestMultiplexWriterPassthrough(t *testing.T) {
	var wire bytes.Buffer
	mw := &MultiplexWriter{Writer: &wire}
	if _, err := mw.Write([]byte("raw")); err != nil {
		t.Fatal(err)
	}
	if wire.String() != "raw" {
		t.Errorf("Write wrote %q, want unframed %q", wire.String(), "raw")
	}
}
