package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxFrameSize bounds a single encoded message. Oversized frames are a
// protocol error and terminate the session.
const MaxFrameSize = 256 * 1024

var (
	// ErrMalformedMessage is returned when a frame cannot be decoded. The
	// session must be closed; the hub resends full state on reconnect.
	ErrMalformedMessage = errors.New("protocol: malformed message")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("protocol: frame exceeds size limit")
)

// Encode serializes a message into one newline-terminated JSON frame.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return append(data, '\n'), nil
}

// Decode parses a single frame, without its trailing newline. A frame must
// hold exactly one JSON value: trailing bytes are a framing fault, not a
// second message.
func Decode(frame []byte) (Message, error) {
	if len(frame) > MaxFrameSize {
		return Message{}, ErrFrameTooLarge
	}
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return m, nil
}

// Decoder frames newline-delimited messages off a byte stream. Partial reads
// never surface as malformed decodes: a frame is only decoded once its
// delimiter has arrived.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until one complete frame is available and decodes it. Empty
// lines are skipped.
func (d *Decoder) Next() (Message, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return Message{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		return Decode(line)
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		if err == nil {
			return buf, nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, err
	}
}

// CompatibleVersion reports whether the peer's protocol version can be spoken
// by this bridge: the major components must match.
func CompatibleVersion(peer string) bool {
	return major(peer) != "" && major(peer) == major(Version)
}

func major(v string) string {
	if i := strings.IndexByte(v, '.'); i > 0 {
		return v[:i]
	}
	return v
}
