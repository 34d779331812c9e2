// Package stream decodes the assistant's line-oriented token stream.
//
// Each line of the form "data: <token>" carries one token. The line
// "data: [DONE]" ends the stream. Any other line (blank separators,
// comments, event or id fields) is ignored. Lines may end in "\n" or
// "\r\n" and may be split anywhere across reads.
package stream

import (
	"bytes"
	"errors"
	"io"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// FrameKind classifies a decoded line
type FrameKind int

const (
	FrameToken FrameKind = iota
	FrameDone
)

// Frame is one meaningful line of the stream
type Frame struct {
	Kind  FrameKind
	Token string
}

// Decoder turns byte chunks into frames, holding partial lines between chunks
type Decoder struct {
	buf bytes.Buffer

	r       io.Reader
	pending []Frame
	chunk   []byte
	done    bool
	err     error
}

// Feed appends a chunk and returns the frames completed by it
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf.Write(chunk)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := d.buf.Next(i + 1)
		if f, ok := parseLine(line[:i]); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Flush classifies a final unterminated line
func (d *Decoder) Flush() []Frame {
	if d.buf.Len() == 0 {
		return nil
	}
	line := append([]byte(nil), d.buf.Bytes()...)
	d.buf.Reset()
	if f, ok := parseLine(line); ok {
		return []Frame{f}
	}
	return nil
}

func parseLine(line []byte) (Frame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return Frame{}, false
	}
	payload := string(line[len(dataPrefix):])
	if payload == doneMarker {
		return Frame{Kind: FrameDone}, true
	}
	return Frame{Kind: FrameToken, Token: payload}, true
}

// NewDecoder reads frames from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, 4096)}
}

// Next returns the next frame. It returns io.EOF once the reader is
// exhausted; a FrameDone is returned like any other frame and the
// caller decides whether to stop.
func (d *Decoder) Next() (Frame, error) {
	if d.r == nil {
		return Frame{}, errors.New("stream: decoder has no reader")
	}
	for len(d.pending) == 0 {
		if d.done {
			if d.err != nil {
				return Frame{}, d.err
			}
			return Frame{}, io.EOF
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.pending = append(d.pending, d.Feed(d.chunk[:n])...)
		}
		if err != nil {
			d.done = true
			d.pending = append(d.pending, d.Flush()...)
			if !errors.Is(err, io.EOF) {
				d.err = err
			}
		}
	}

	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, nil
}
