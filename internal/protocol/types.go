package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandType is the operation tag carried in every Command.
// Values outside the known set still decode so dispatch can name them.
type CommandType string

const (
	TypePing            CommandType = "PING"
	TypeListImages      CommandType = "LIST_IMAGES"
	TypePullImage       CommandType = "PULL_IMAGE"
	TypeListContainers  CommandType = "LIST_CONTAINERS"
	TypeCreateContainer CommandType = "CREATE_CONTAINER"
	TypeStartContainer  CommandType = "START_CONTAINER"
	TypeStopContainer   CommandType = "STOP_CONTAINER"
	TypeDeleteContainer CommandType = "DELETE_CONTAINER"
	TypeContainerStatus CommandType = "CONTAINER_STATUS"
	TypeExit            CommandType = "EXIT"
)

// Parameter names used by the command vocabulary.
const (
	ParamImage = "image"
	ParamName  = "name"
	ParamID    = "id"
	ParamAll   = "all"
)

// KnownTypes lists the closed command set in protocol order.
func KnownTypes() []CommandType {
	return []CommandType{
		TypePing,
		TypeListImages,
		TypePullImage,
		TypeListContainers,
		TypeCreateContainer,
		TypeStartContainer,
		TypeStopContainer,
		TypeDeleteContainer,
		TypeContainerStatus,
		TypeExit,
	}
}

// Known reports whether t belongs to the closed command set.
func (t CommandType) Known() bool {
	for _, known := range KnownTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Command is one request unit.
type Command struct {
	Type       CommandType       `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Param returns the named parameter or "" when absent.
func (c Command) Param(name string) string {
	if c.Parameters == nil {
		return ""
	}
	return c.Parameters[name]
}

// Response is one reply unit. Data is only populated on success.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success builds a success response without payload.
func Success(message string) Response {
	return Response{Success: true, Message: message}
}

// SuccessWithData builds a success response carrying data.
func SuccessWithData(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Failure builds a failure response. Failures never carry data.
func Failure(message string) Response {
	return Response{Success: false, Message: message}
}

// Failuref builds a formatted failure response.
func Failuref(format string, args ...any) Response {
	return Failure(fmt.Sprintf(format, args...))
}

// Into decodes Data into out. Decoded responses carry raw JSON; locally built
// responses are round-tripped through JSON.
func (r Response) Into(out any) error {
	if r.Data == nil {
		return nil
	}
	raw, ok := r.Data.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(r.Data)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, out)
}

// ImageInfo is one image record carried by LIST_IMAGES.
type ImageInfo struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Size       int64  `json:"size"`
	Created    int64  `json:"created"`
}

// ContainerInfo is one container record carried by LIST_CONTAINERS.
type ContainerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Created int64  `json:"created"`
}
