package broker

import (
	"context"
	"fmt"

	"github.com/danmuck/dockctl/internal/backend"
	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/protocol/command"
	"github.com/rs/zerolog/log"
)

const (
	GreetingMessage = "Connected to Docker Remote Manager"

	msgPong             = "PONG"
	msgImagesOK         = "Images retrieved successfully"
	msgContainersOK     = "Containers retrieved successfully"
	msgCreatedFmt       = "Container created successfully with ID: %s"
	msgStarted          = "Container started successfully"
	msgStopped          = "Container stopped successfully"
	msgDeleted          = "Container deleted successfully"
	msgGoodbye          = "Goodbye!"
	msgExecutionFailed  = "Command execution failed: %s"
	msgInvalidFormatFmt = "Invalid command format: %s"
)

// Dispatcher maps one command to exactly one response using a Backend.
type Dispatcher struct {
	backend backend.Backend
}

func NewDispatcher(b backend.Backend) *Dispatcher {
	return &Dispatcher{backend: b}
}

// Dispatch validates cmd, calls the backend at most once, and builds the
// response. The bool reports whether the session must close afterwards.
// Backend errors and panics become failure responses.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) (resp protocol.Response, closeAfter bool) {
	req, err := command.Parse(cmd)
	if err != nil {
		return protocol.Failure(err.Error()), false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("type", string(cmd.Type)).Interface("panic", r).Msg("broker.Dispatch backend panic")
			resp = protocol.Failuref(msgExecutionFailed, fmt.Sprint(r))
			closeAfter = false
		}
	}()

	switch r := req.(type) {
	case command.Ping:
		return protocol.Success(msgPong), false
	case command.ListImages:
		images, err := d.backend.ListImages(ctx)
		if err != nil {
			return executionFailure(err), false
		}
		if images == nil {
			images = []protocol.ImageInfo{}
		}
		return protocol.SuccessWithData(msgImagesOK, images), false
	case command.PullImage:
		msg, err := d.backend.PullImage(ctx, r.Image)
		if err != nil {
			return executionFailure(err), false
		}
		return protocol.Success(msg), false
	case command.ListContainers:
		containers, err := d.backend.ListContainers(ctx, r.All)
		if err != nil {
			return executionFailure(err), false
		}
		if containers == nil {
			containers = []protocol.ContainerInfo{}
		}
		return protocol.SuccessWithData(msgContainersOK, containers), false
	case command.CreateContainer:
		id, err := d.backend.CreateContainer(ctx, r.Image, r.Name)
		if err != nil {
			return executionFailure(err), false
		}
		return protocol.SuccessWithData(fmt.Sprintf(msgCreatedFmt, id), id), false
	case command.StartContainer:
		if err := d.backend.StartContainer(ctx, r.ID); err != nil {
			return executionFailure(err), false
		}
		return protocol.Success(msgStarted), false
	case command.StopContainer:
		if err := d.backend.StopContainer(ctx, r.ID); err != nil {
			return executionFailure(err), false
		}
		return protocol.Success(msgStopped), false
	case command.DeleteContainer:
		if err := d.backend.DeleteContainer(ctx, r.ID); err != nil {
			return executionFailure(err), false
		}
		return protocol.Success(msgDeleted), false
	case command.ContainerStatus:
		status, err := d.backend.ContainerStatus(ctx, r.ID)
		if err != nil {
			return executionFailure(err), false
		}
		return protocol.Success(status), false
	case command.Exit:
		return protocol.Success(msgGoodbye), true
	default:
		return protocol.Failuref("Unknown command: %s", cmd.Type), false
	}
}

func executionFailure(err error) protocol.Response {
	return protocol.Failuref(msgExecutionFailed, err.Error())
}
