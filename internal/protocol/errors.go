package protocol

import "errors"

// ErrMalformedEnvelope marks a line that is not a well-formed envelope.
// Decode errors wrap it with the specific reason.
var ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
