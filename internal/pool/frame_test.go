package pool

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, 42, []byte("hello world")); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	id, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if id != 42 {
		t.Errorf("expected client id 42, got %d", id)
	}
	if string(payload) != "hello world" {
		t.Errorf("expected payload %q, got %q", "hello world", payload)
	}
}

func TestWriteReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer

	if err := writeFrame(&buf, 7, nil); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}

	id, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if id != 7 {
		t.Errorf("expected client id 7, got %d", id)
	}
	if len(payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestReadFrameMultipleSequential(t *testing.T) {
	var buf bytes.Buffer
	writeFrame(&buf, 1, []byte("a"))
	writeFrame(&buf, 2, []byte("bb"))
	writeFrame(&buf, 3, []byte("ccc"))

	want := []struct {
		id      uint64
		payload string
	}{
		{1, "a"}, {2, "bb"}, {3, "ccc"},
	}

	for _, w := range want {
		id, payload, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("readFrame failed: %v", err)
		}
		if id != w.id || string(payload) != w.payload {
			t.Errorf("got (%d, %q), want (%d, %q)", id, payload, w.id, w.payload)
		}
	}

	if _, _, err := readFrame(&buf); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, maxFramePayload+1)

	if err := writeFrame(&buf, 1, oversized); err == nil {
		t.Error("expected error for oversized payload")
	}
}
