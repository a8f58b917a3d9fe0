package broker

import (
	"context"
	"strings"
	"testing"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/testutil/testlog"
)

func cmd(t protocol.CommandType, kv ...string) protocol.Command {
	c := protocol.Command{Type: t}
	if len(kv) > 0 {
		c.Parameters = make(map[string]string)
		for i := 0; i+1 < len(kv); i += 2 {
			c.Parameters[kv[i]] = kv[i+1]
		}
	}
	return c
}

func TestDispatchSuccessMessages(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		cmd     protocol.Command
		message string
		call    string
	}{
		{cmd(protocol.TypePing), "PONG", ""},
		{cmd(protocol.TypeListImages), "Images retrieved successfully", "ListImages"},
		{cmd(protocol.TypePullImage, "image", "alpine"), "Successfully pulled image: alpine", "PullImage"},
		{cmd(protocol.TypeListContainers, "all", "true"), "Containers retrieved successfully", "ListContainers"},
		{cmd(protocol.TypeCreateContainer, "image", "nginx", "name", "web"), "Container created successfully with ID: id-web", "CreateContainer"},
		{cmd(protocol.TypeStartContainer, "id", "c1"), "Container started successfully", "StartContainer"},
		{cmd(protocol.TypeStopContainer, "id", "c1"), "Container stopped successfully", "StopContainer"},
		{cmd(protocol.TypeDeleteContainer, "id", "c1"), "Container deleted successfully", "DeleteContainer"},
		{cmd(protocol.TypeContainerStatus, "id", "c1"), "Container c1 - State: running, Running: true, Status: running", "ContainerStatus"},
	}
	for _, tc := range cases {
		b := newStubBackend()
		resp, closeAfter := NewDispatcher(b).Dispatch(context.Background(), tc.cmd)
		if !resp.Success || resp.Message != tc.message {
			t.Fatalf("%s: unexpected response: %+v", tc.cmd.Type, resp)
		}
		if closeAfter {
			t.Fatalf("%s: must not close session", tc.cmd.Type)
		}
		if tc.call != "" && b.count(tc.call) != 1 {
			t.Fatalf("%s: expected one %s call, got %d", tc.cmd.Type, tc.call, b.count(tc.call))
		}
		if tc.call == "" && b.total() != 0 {
			t.Fatalf("%s: expected no backend calls", tc.cmd.Type)
		}
	}
}

func TestDispatchCreateCarriesID(t *testing.T) {
	testlog.Start(t)
	resp, _ := NewDispatcher(newStubBackend()).Dispatch(context.Background(), cmd(protocol.TypeCreateContainer, "image", "nginx", "name", "web"))
	var id string
	if err := resp.Into(&id); err != nil || id != "id-web" {
		t.Fatalf("unexpected data: %v err=%v", resp.Data, err)
	}
}

func TestDispatchExitClosesSession(t *testing.T) {
	testlog.Start(t)
	b := newStubBackend()
	resp, closeAfter := NewDispatcher(b).Dispatch(context.Background(), cmd(protocol.TypeExit))
	if !resp.Success || resp.Message != "Goodbye!" || !closeAfter {
		t.Fatalf("unexpected exit result: %+v close=%v", resp, closeAfter)
	}
	if b.total() != 0 {
		t.Fatalf("EXIT must not touch the backend")
	}
}

func TestDispatchValidationMakesNoBackendCalls(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		cmd     protocol.Command
		message string
	}{
		{cmd(""), "Command type is required"},
		{cmd("REBOOT_HOST"), "Unknown command: REBOOT_HOST"},
		{cmd(protocol.TypePullImage), "Image name is required"},
		{cmd(protocol.TypeListContainers), "All flag is required"},
		{cmd(protocol.TypeListContainers, "all", "sometimes"), `Invalid value for all: "sometimes"`},
		{cmd(protocol.TypeCreateContainer, "image", "", "name", "web"), "Image name is required"},
		{cmd(protocol.TypeCreateContainer, "image", "nginx"), "Container name is required"},
		{cmd(protocol.TypeStartContainer), "Container ID is required"},
		{cmd(protocol.TypeStopContainer, "id", "   "), "Container ID is required"},
		{cmd(protocol.TypeDeleteContainer), "Container ID is required"},
		{cmd(protocol.TypeContainerStatus), "Container ID is required"},
	}
	b := newStubBackend()
	d := NewDispatcher(b)
	for _, tc := range cases {
		resp, closeAfter := d.Dispatch(context.Background(), tc.cmd)
		if resp.Success || resp.Message != tc.message || resp.Data != nil || closeAfter {
			t.Fatalf("%q: unexpected response: %+v", tc.cmd.Type, resp)
		}
	}
	if b.total() != 0 {
		t.Fatalf("validation failures reached the backend: %d calls", b.total())
	}
}

func TestDispatchBackendErrorBecomesFailure(t *testing.T) {
	testlog.Start(t)
	b := newStubBackend()
	b.failWith = errNoSuchContainer
	resp, closeAfter := NewDispatcher(b).Dispatch(context.Background(), cmd(protocol.TypeStartContainer, "id", "missing"))
	if resp.Success || closeAfter {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Message != "Command execution failed: No such container: missing" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
}

func TestDispatchRecoversBackendPanic(t *testing.T) {
	testlog.Start(t)
	b := newStubBackend()
	b.panicWith = "driver exploded"
	resp, closeAfter := NewDispatcher(b).Dispatch(context.Background(), cmd(protocol.TypeListImages))
	if resp.Success || closeAfter || !strings.Contains(resp.Message, "driver exploded") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDispatchEmptyListsEncodeAsArrays(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher(newStubBackend())
	for _, c := range []protocol.Command{cmd(protocol.TypeListContainers, "all", "false"), cmd(protocol.TypeListImages)} {
		resp, _ := d.Dispatch(context.Background(), c)
		line, err := protocol.EncodeResponse(resp)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !strings.HasSuffix(string(line), `"data":[]}`) {
			t.Fatalf("%s: expected empty array data, got %s", c.Type, line)
		}
	}
}
