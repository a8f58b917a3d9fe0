package protocol

import (
	"bytes"
	"encoding/json"
)

// EncodeCommand renders c as one JSON object without a line terminator.
func EncodeCommand(c Command) ([]byte, error) {
	if len(c.Parameters) == 0 {
		c.Parameters = nil
	}
	return marshalLine(c)
}

// EncodeResponse renders r as one JSON object without a line terminator.
// Data is dropped from failure responses.
func EncodeResponse(r Response) ([]byte, error) {
	if !r.Success {
		r.Data = nil
	}
	return marshalLine(r)
}

func marshalLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
