package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type commandWire struct {
	Type       *string           `json:"type"`
	Parameters map[string]string `json:"parameters"`
}

type responseWire struct {
	Success *bool           `json:"success"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeCommand parses one line into a Command. Unknown type values decode
// successfully; structural problems wrap ErrMalformedEnvelope.
func DecodeCommand(line []byte) (Command, error) {
	var w commandWire
	if err := unmarshalObject(line, &w); err != nil {
		return Command{}, err
	}
	if w.Type == nil {
		return Command{}, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}
	cmd := Command{Type: CommandType(*w.Type)}
	if len(w.Parameters) > 0 {
		cmd.Parameters = w.Parameters
	}
	return cmd, nil
}

// DecodeResponse parses one line into a Response. Data is kept as raw JSON.
func DecodeResponse(line []byte) (Response, error) {
	var w responseWire
	if err := unmarshalObject(line, &w); err != nil {
		return Response{}, err
	}
	if w.Success == nil {
		return Response{}, fmt.Errorf("%w: missing success", ErrMalformedEnvelope)
	}
	resp := Response{Success: *w.Success}
	if w.Message != nil {
		resp.Message = *w.Message
	}
	data := bytes.TrimSpace(w.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		resp.Data = json.RawMessage(data)
	}
	return resp, nil
}

func unmarshalObject(line []byte, out any) error {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty line", ErrMalformedEnvelope)
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("%w: expected JSON object", ErrMalformedEnvelope)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return nil
}
