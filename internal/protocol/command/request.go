package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/dockctl/internal/protocol"
)

// Request is one validated command with typed fields.
type Request interface {
	Type() protocol.CommandType
	isRequest()
}

type Ping struct{}

type ListImages struct{}

type PullImage struct {
	Image string
}

type ListContainers struct {
	All bool
}

type CreateContainer struct {
	Image string
	Name  string
}

type StartContainer struct {
	ID string
}

type StopContainer struct {
	ID string
}

type DeleteContainer struct {
	ID string
}

type ContainerStatus struct {
	ID string
}

type Exit struct{}

func (Ping) Type() protocol.CommandType            { return protocol.TypePing }
func (ListImages) Type() protocol.CommandType      { return protocol.TypeListImages }
func (PullImage) Type() protocol.CommandType       { return protocol.TypePullImage }
func (ListContainers) Type() protocol.CommandType  { return protocol.TypeListContainers }
func (CreateContainer) Type() protocol.CommandType { return protocol.TypeCreateContainer }
func (StartContainer) Type() protocol.CommandType  { return protocol.TypeStartContainer }
func (StopContainer) Type() protocol.CommandType   { return protocol.TypeStopContainer }
func (DeleteContainer) Type() protocol.CommandType { return protocol.TypeDeleteContainer }
func (ContainerStatus) Type() protocol.CommandType { return protocol.TypeContainerStatus }
func (Exit) Type() protocol.CommandType            { return protocol.TypeExit }

func (Ping) isRequest()            {}
func (ListImages) isRequest()      {}
func (PullImage) isRequest()       {}
func (ListContainers) isRequest()  {}
func (CreateContainer) isRequest() {}
func (StartContainer) isRequest()  {}
func (StopContainer) isRequest()   {}
func (DeleteContainer) isRequest() {}
func (ContainerStatus) isRequest() {}
func (Exit) isRequest()            {}

// Parse validates cmd and converts it into its typed variant.
// Failures are always ValidationError values.
func Parse(cmd protocol.Command) (Request, error) {
	if err := Validate(cmd); err != nil {
		return nil, err
	}
	param := func(name string) string {
		return strings.TrimSpace(cmd.Param(name))
	}
	switch cmd.Type {
	case protocol.TypePing:
		return Ping{}, nil
	case protocol.TypeListImages:
		return ListImages{}, nil
	case protocol.TypePullImage:
		return PullImage{Image: param(protocol.ParamImage)}, nil
	case protocol.TypeListContainers:
		raw := param(protocol.ParamAll)
		all, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, ValidationError{
				Type:   cmd.Type,
				Param:  protocol.ParamAll,
				Reason: fmt.Sprintf("Invalid value for all: %q", raw),
			}
		}
		return ListContainers{All: all}, nil
	case protocol.TypeCreateContainer:
		return CreateContainer{Image: param(protocol.ParamImage), Name: param(protocol.ParamName)}, nil
	case protocol.TypeStartContainer:
		return StartContainer{ID: param(protocol.ParamID)}, nil
	case protocol.TypeStopContainer:
		return StopContainer{ID: param(protocol.ParamID)}, nil
	case protocol.TypeDeleteContainer:
		return DeleteContainer{ID: param(protocol.ParamID)}, nil
	case protocol.TypeContainerStatus:
		return ContainerStatus{ID: param(protocol.ParamID)}, nil
	case protocol.TypeExit:
		return Exit{}, nil
	default:
		return nil, ValidationError{Type: cmd.Type, Reason: fmt.Sprintf(msgUnknownCommandFmt, cmd.Type)}
	}
}

// Encode converts a typed request into its wire command.
func Encode(req Request) protocol.Command {
	cmd := protocol.Command{Type: req.Type()}
	switch r := req.(type) {
	case PullImage:
		cmd.Parameters = map[string]string{protocol.ParamImage: r.Image}
	case ListContainers:
		cmd.Parameters = map[string]string{protocol.ParamAll: strconv.FormatBool(r.All)}
	case CreateContainer:
		cmd.Parameters = map[string]string{protocol.ParamImage: r.Image, protocol.ParamName: r.Name}
	case StartContainer:
		cmd.Parameters = map[string]string{protocol.ParamID: r.ID}
	case StopContainer:
		cmd.Parameters = map[string]string{protocol.ParamID: r.ID}
	case DeleteContainer:
		cmd.Parameters = map[string]string{protocol.ParamID: r.ID}
	case ContainerStatus:
		cmd.Parameters = map[string]string{protocol.ParamID: r.ID}
	}
	return cmd
}
