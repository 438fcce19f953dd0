package ipc

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frames are a big-endian uint32 length followed by one JSON message.
var (
	ErrFrameTooLarge = errors.New("ipc: frame too large")
	ErrShortFrame    = errors.New("ipc: short frame")
)

// EncodeMessage returns the frame for msg.
func EncodeMessage(msg *Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if len(body) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFrameTooLarge, msg.Type, len(body), MaxMessageSize)
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	return append(frame, body...), nil
}

// DecodeMessage parses a single complete frame.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d header bytes", ErrShortFrame, len(data))
	}
	n, err := bodyLen(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if len(data)-HeaderSize < n {
		return nil, fmt.Errorf("%w: want %d body bytes, got %d", ErrShortFrame, n, len(data)-HeaderSize)
	}
	return parseBody(data[HeaderSize : HeaderSize+n])
}

func bodyLen(header []byte) (int, error) {
	n := binary.BigEndian.Uint32(header)
	if n > MaxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, n, MaxMessageSize)
	}
	return int(n), nil
}

func parseBody(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

// Compatible reports whether a peer speaking version v understands this
// protocol. Only the major version has to match; an empty version is a
// pre-versioning peer and is accepted.
func Compatible(v string) bool {
	if v == "" {
		return true
	}
	major, _, _ := strings.Cut(v, ".")
	want, _, _ := strings.Cut(ProtocolVersion, ".")
	return major == want
}

// Encoder writes frames to a connection.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame with a single Write call.
func (e *Encoder) Encode(msg *Message) error {
	frame, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	_, err = e.w.Write(frame)
	return err
}

// Decoder reads frames from a connection.
type Decoder struct {
	r      io.Reader
	header [HeaderSize]byte
	buf    []byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the next frame. io.EOF is returned unwrapped when the peer
// closed the connection between frames.
func (d *Decoder) Decode() (*Message, error) {
	if _, err := io.ReadFull(d.r, d.header[:]); err != nil {
		return nil, err
	}
	n, err := bodyLen(d.header[:])
	if err != nil {
		return nil, err
	}

	// Requests and results are small; one buffer serves the whole connection.
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	body := d.buf[:n]
	if _, err := io.ReadFull(d.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", ErrShortFrame, err)
	}
	return parseBody(body)
}
