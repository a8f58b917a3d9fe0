package frame

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

var (
	ErrLineTooLarge    = errors.New("frame: line too large")
	ErrEmbeddedNewline = errors.New("frame: payload contains newline")
)

// Limits constrains line decode/encode memory use.
type Limits struct {
	MaxLineBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxLineBytes: 1024 * 1024,
	}
}

func (l Limits) maxLine() int {
	if l.MaxLineBytes <= 0 {
		return DefaultLimits().MaxLineBytes
	}
	return l.MaxLineBytes
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
// A final unterminated line is returned as-is; io.EOF is only reported
// once the reader is drained.
func ReadLine(r *bufio.Reader, limits Limits) ([]byte, error) {
	max := limits.maxLine()
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > max+2 {
			return nil, ErrLineTooLarge
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > max {
		return nil, ErrLineTooLarge
	}
	return line, nil
}

// WriteLine writes payload followed by "\n" in a single Write call.
func WriteLine(w io.Writer, payload []byte, limits Limits) error {
	if bytes.IndexByte(payload, '\n') >= 0 {
		return ErrEmbeddedNewline
	}
	if len(payload) > limits.maxLine() {
		return ErrLineTooLarge
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
