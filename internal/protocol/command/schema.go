package command

import (
	"fmt"
	"strings"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Requirement names one required parameter and the message reported when it
// is missing or blank.
type Requirement struct {
	Param   string
	Missing string
}

// ValidationError is a contract failure answered without touching the backend.
// Error returns the client-facing message.
type ValidationError struct {
	Type   protocol.CommandType
	Param  string
	Reason string
}

func (e ValidationError) Error() string {
	return e.Reason
}

const (
	msgTypeRequired      = "Command type is required"
	msgImageRequired     = "Image name is required"
	msgNameRequired      = "Container name is required"
	msgIDRequired        = "Container ID is required"
	msgAllRequired       = "All flag is required"
	msgUnknownCommandFmt = "Unknown command: %s"
)

var requirements = map[protocol.CommandType][]Requirement{
	protocol.TypePing:       nil,
	protocol.TypeListImages: nil,
	protocol.TypePullImage: {
		{protocol.ParamImage, msgImageRequired},
	},
	protocol.TypeListContainers: {
		{protocol.ParamAll, msgAllRequired},
	},
	protocol.TypeCreateContainer: {
		{protocol.ParamImage, msgImageRequired},
		{protocol.ParamName, msgNameRequired},
	},
	protocol.TypeStartContainer:  {{protocol.ParamID, msgIDRequired}},
	protocol.TypeStopContainer:   {{protocol.ParamID, msgIDRequired}},
	protocol.TypeDeleteContainer: {{protocol.ParamID, msgIDRequired}},
	protocol.TypeContainerStatus: {{protocol.ParamID, msgIDRequired}},
	protocol.TypeExit:            nil,
}

// Requirements returns the required parameters of t in check order.
func Requirements(t protocol.CommandType) ([]Requirement, bool) {
	reqs, ok := requirements[t]
	return reqs, ok
}

// Validate enforces the type and required-parameter contract of cmd.
// Parameters are checked in table order and the first missing or blank one
// is reported. Unknown parameters are ignored.
func Validate(cmd protocol.Command) error {
	if strings.TrimSpace(string(cmd.Type)) == "" {
		log.Debug().Msg("command.Validate missing type")
		return ValidationError{Reason: msgTypeRequired}
	}
	reqs, ok := requirements[cmd.Type]
	if !ok {
		log.Debug().Str("type", string(cmd.Type)).Msg("command.Validate unknown type")
		return ValidationError{Type: cmd.Type, Reason: fmt.Sprintf(msgUnknownCommandFmt, cmd.Type)}
	}
	for _, req := range reqs {
		if strings.TrimSpace(cmd.Param(req.Param)) == "" {
			log.Debug().
				Str("type", string(cmd.Type)).
				Str("param", req.Param).
				Msg("command.Validate missing parameter")
			return ValidationError{Type: cmd.Type, Param: req.Param, Reason: req.Missing}
		}
	}
	return nil
}
