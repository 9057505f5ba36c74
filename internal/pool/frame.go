package pool

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frameHeaderSize is the fixed envelope every chunk forwarded to or from a
// backend carries: an 8-byte client id followed by a 4-byte payload length,
// both big-endian. This resolves spec's explicitly undesigned backend<->
// client byte direction: one upstream socket is shared across every client
// assigned to that backend, so raw unframed forwarding would interleave
// unrelated clients' streams with no way to demultiplex a response.
const frameHeaderSize = 12

const maxFramePayload = 1 << 20 // 1 MiB, generous above the 1023-byte client read cap

// writeFrame wraps payload with the clientID header and writes it to w as
// one frame (the header, then the payload, in two writes), matching the
// original's per-read forwarding granularity (spec §4.3 step 4: each client
// read is forwarded as it arrives).
func writeFrame(w io.Writer, clientID uint64, payload []byte) error {
	if len(payload) > maxFramePayload {
		return fmt.Errorf("frame payload %d exceeds max %d", len(payload), maxFramePayload)
	}
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[0:8], clientID)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing frame payload: %w", err)
		}
	}
	return nil
}

// readFrame reads one framed chunk from r, returning the client id the
// payload is destined for and the payload itself.
func readFrame(r io.Reader) (clientID uint64, payload []byte, err error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	clientID = binary.BigEndian.Uint64(header[0:8])
	length := binary.BigEndian.Uint32(header[8:12])
	if length > maxFramePayload {
		return 0, nil, fmt.Errorf("frame payload length %d exceeds max %d", length, maxFramePayload)
	}

	payload = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("reading frame payload: %w", err)
		}
	}
	return clientID, payload, nil
}
