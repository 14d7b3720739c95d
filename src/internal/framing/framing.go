// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package framing

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/helper/gc"
)

// Mode identifies the wire framing used on a channel.
type Mode int

const (
	// ModeAuto means the framing has not been detected yet. The first
	// non-whitespace bytes on the channel fix the mode for its lifetime.
	ModeAuto Mode = iota
	// ModeNDJSON frames one JSON envelope per newline-terminated line.
	ModeNDJSON
	// ModeLSP frames envelopes with Content-Length headers, as used by
	// the Language Server Protocol.
	ModeLSP
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeNDJSON:
		return "ndjson"
	case ModeLSP:
		return "lsp"
	default:
		return "auto"
	}
}

// contentLengthPrefix is the detection marker for LSP framing. Detection
// is case-insensitive because LSP header names are.
var contentLengthPrefix = []byte("content-length:")

// headerTerminator separates the LSP header section from the body.
var headerTerminator = []byte("\r\n\r\n")

// Codec reassembles complete frame payloads from an arbitrarily chunked
// byte stream and frames outgoing payloads symmetrically. The framing mode
// is detected from the first non-whitespace input and never changes
// afterwards, so a channel that opens with Content-Length headers stays
// LSP-framed for its lifetime.
//
// A Codec is not safe for concurrent use; callers serialize access the
// same way they serialize reads from the underlying pipe.
type Codec struct {
	mode Mode
	buf  gc.Buffer
}

// NewCodec creates a codec that detects its framing from the first input.
func NewCodec() *Codec {
	return &Codec{mode: ModeAuto}
}

// NewCodecWithMode creates a codec pinned to a known framing, skipping
// detection. Useful when the channel's framing is configured out of band.
func NewCodecWithMode(mode Mode) *Codec {
	return &Codec{mode: mode}
}

// Mode returns the detected (or pinned) framing mode. Before any input
// has arrived this is ModeAuto.
func (c *Codec) Mode() Mode { return c.mode }

// Decode appends a chunk of raw stream bytes and returns every complete
// frame payload now available, in arrival order. Partial frames stay
// buffered until later chunks complete them, so callers can feed reads
// of any size, including single bytes. An LSP header block without a
// usable Content-Length is dropped and scanning continues; decoding is
// never fatal for the stream.
//
// Parameters:
//   - chunk: Raw bytes read from the stream, any length
//
// Returns:
//   - [][]byte: Zero or more complete frame payloads (independent copies)
func (c *Codec) Decode(chunk []byte) [][]byte {
	if len(chunk) > 0 {
		if c.buf == nil {
			c.buf = gc.Default.Get()
		}
		c.buf.Write(chunk)
	}
	if c.buf == nil {
		return nil
	}

	if c.mode == ModeAuto {
		c.detect()
		if c.mode == ModeAuto {
			return nil
		}
	}

	switch c.mode {
	case ModeLSP:
		return c.extractLSP()
	default:
		return c.extractNDJSON()
	}
}

// Flush drains end-of-stream leftovers. A non-empty NDJSON tail missing
// its final newline is returned as one last frame; a dangling partial
// LSP frame is dropped. The internal buffer is released either way.
func (c *Codec) Flush() []byte {
	if c.buf == nil {
		return nil
	}
	var tail []byte
	if c.mode == ModeNDJSON || c.mode == ModeAuto {
		line := bytes.TrimSpace(c.buf.Bytes())
		if len(line) > 0 {
			tail = make([]byte, len(line))
			copy(tail, line)
		}
	}
	c.Close()
	return tail
}

// Encode frames a payload for the channel's mode. Before detection has
// happened outgoing traffic uses NDJSON, matching the default a fresh
// tool process speaks until it reveals its framing.
func (c *Codec) Encode(payload []byte) []byte {
	if c.mode == ModeLSP {
		header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
		out := make([]byte, 0, len(header)+len(payload))
		out = append(out, header...)
		return append(out, payload...)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)
	return append(out, '\n')
}

// Close returns the internal buffer to the pool. The codec must not be
// used after Close.
func (c *Codec) Close() {
	if c.buf != nil {
		c.buf.Reset()
		gc.Default.Put(c.buf)
		c.buf = nil
	}
}

// detect fixes the framing mode from the buffered bytes. A channel is LSP
// when it opens with the Content-Length marker, when the buffer contains a
// header terminator, or when its first line is header-shaped (LSP blocks
// may open with Content-Type or other headers before Content-Length).
// Leading whitespace is skipped so a stray blank line before the first
// frame does not force a wrong guess; carriage returns are kept because
// they are part of the terminator signal. Detection stays pending while
// the buffer holds a strict prefix of the marker or no newline at all
// (NDJSON cannot yield a frame before its first newline either).
func (c *Codec) detect() {
	data := c.buf.Bytes()
	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	if start > 0 {
		c.compact(data[start:])
		if c.buf == nil {
			return
		}
		data = c.buf.Bytes()
	}
	if len(data) == 0 {
		return
	}

	probe := data
	if len(probe) > len(contentLengthPrefix) {
		probe = probe[:len(contentLengthPrefix)]
	}
	lower := bytes.ToLower(probe)
	if len(lower) < len(contentLengthPrefix) {
		if bytes.HasPrefix(contentLengthPrefix, lower) {
			// Could still become an LSP header, wait for more bytes.
			return
		}
	} else if bytes.Equal(lower, contentLengthPrefix) {
		c.mode = ModeLSP
		return
	}

	if bytes.Contains(data, headerTerminator) {
		c.mode = ModeLSP
		return
	}

	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return
	}
	line := data[:idx]
	if len(line) > 0 && line[len(line)-1] == '\r' && isHeaderLine(line[:len(line)-1]) {
		c.mode = ModeLSP
		return
	}
	c.mode = ModeNDJSON
}

// isHeaderLine reports whether line has the shape of an LSP header: a
// nonempty token name, a colon, anything after. JSON lines never qualify
// because their leading bytes are not header-name characters.
func isHeaderLine(line []byte) bool {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	for _, b := range line[:colon] {
		switch {
		case b >= 'a' && b <= 'z':
		case b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9':
		case b == '-':
		default:
			return false
		}
	}
	return true
}

// extractNDJSON pulls every complete newline-terminated line out of the
// buffer. Blank lines are skipped; a trailing carriage return is trimmed
// so CRLF input decodes the same as LF.
func (c *Codec) extractNDJSON() [][]byte {
	data := c.buf.Bytes()
	var frames [][]byte
	consumed := 0

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := data[:idx]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			frame := make([]byte, len(line))
			copy(frame, line)
			frames = append(frames, frame)
		}
		data = data[idx+1:]
		consumed += idx + 1
	}

	if consumed > 0 {
		c.compact(data)
	}
	return frames
}

// extractLSP pulls every complete Content-Length framed body out of the
// buffer. A header block without a usable Content-Length is dropped and
// scanning resumes after it, so one bad frame never wedges the channel.
func (c *Codec) extractLSP() [][]byte {
	var frames [][]byte

	for {
		data := c.buf.Bytes()
		headerEnd := bytes.Index(data, headerTerminator)
		if headerEnd == -1 {
			break
		}

		bodyStart := headerEnd + len(headerTerminator)
		length, ok := parseContentLength(data[:headerEnd])
		if !ok {
			c.compact(data[bodyStart:])
			if c.buf == nil {
				break
			}
			continue
		}

		if len(data) < bodyStart+length {
			break
		}

		frame := make([]byte, length)
		copy(frame, data[bodyStart:bodyStart+length])
		frames = append(frames, frame)

		c.compact(data[bodyStart+length:])
		if c.buf == nil {
			break
		}
	}
	return frames
}

// parseContentLength finds the Content-Length header in an LSP header
// section and returns its value. The second return is false when the
// header is missing or its value is not a non-negative integer.
func parseContentLength(header []byte) (int, bool) {
	for _, line := range bytes.Split(header, []byte("\r\n")) {
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		name := bytes.ToLower(bytes.TrimSpace(line[:colon]))
		if !bytes.Equal(name, []byte("content-length")) {
			continue
		}
		value := string(bytes.TrimSpace(line[colon+1:]))
		length, err := strconv.Atoi(value)
		if err != nil || length < 0 {
			return 0, false
		}
		return length, true
	}
	return 0, false
}

// compact shifts the unconsumed tail to the front of the buffer, or
// returns the buffer to the pool when nothing remains.
// Note: Set() uses append(dst[:0], src...), which handles overlapping
// slices correctly.
func (c *Codec) compact(remaining []byte) {
	if len(remaining) == 0 {
		c.buf.Reset()
		gc.Default.Put(c.buf)
		c.buf = nil
		return
	}
	c.buf.Set(remaining)
}

// isSpace matches the whitespace skipped before detection. Carriage
// returns are excluded so a leading CRLF pair still reads as part of an
// LSP header terminator.
func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}
