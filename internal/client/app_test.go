package client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/testutil/testlog"
)

type fakeTransport struct {
	greeting  protocol.Response
	responses map[protocol.CommandType]protocol.Response
	err       error
	sent      []protocol.Command
	closed    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		greeting: protocol.Success("Connected to Docker Remote Manager"),
		responses: map[protocol.CommandType]protocol.Response{
			protocol.TypePing: protocol.Success("PONG"),
			protocol.TypeExit: protocol.Success("Goodbye!"),
		},
	}
}

func (f *fakeTransport) Greeting() protocol.Response { return f.greeting }

func (f *fakeTransport) Do(_ context.Context, cmd protocol.Command) (protocol.Response, error) {
	f.sent = append(f.sent, cmd)
	if f.err != nil {
		return protocol.Response{}, f.err
	}
	if resp, ok := f.responses[cmd.Type]; ok {
		return resp, nil
	}
	return protocol.Failuref("unscripted %s", cmd.Type), nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func runApp(t *testing.T, transport *fakeTransport, input string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(transport, strings.NewReader(input), &out, &errOut)
	app.now = func() time.Time { return time.Unix(1_700_007_200, 0) }
	err := app.Run(context.Background())
	return out.String(), errOut.String(), err
}

func TestRunPrintsGreetingAndExits(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	out, _, err := runApp(t, transport, "ping\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "✓ Connected to Docker Remote Manager") {
		t.Fatalf("missing greeting in output:\n%s", out)
	}
	if !strings.Contains(out, "PONG") || !strings.Contains(out, "Goodbye!") {
		t.Fatalf("missing response messages in output:\n%s", out)
	}
	if len(transport.sent) != 2 || transport.sent[0].Type != protocol.TypePing || transport.sent[1].Type != protocol.TypeExit {
		t.Fatalf("unexpected commands sent: %+v", transport.sent)
	}
	if transport.closed != 1 {
		t.Fatalf("expected transport closed once, got %d", transport.closed)
	}
	if strings.Contains(out, prompt) {
		t.Fatalf("prompt must not be shown for non-terminal input")
	}
}

func TestRunArityAndUnknownWordsStayLocal(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	out, _, err := runApp(t, transport, "pull\ncreate nginx\nstart\nrm\nstatus\nps --all\ncontainers -a extra\n\n   \nfrobnicate x\nhelp\nquit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{
		"Usage: pull <image-name>",
		"Usage: create <image> <container-name>",
		"Usage: start <container-id>",
		"Usage: rm <container-id>",
		"Usage: status <container-id>",
		"Usage: ps [-a]",
		"Usage: containers [-a]",
		"Unknown command: frobnicate",
		"Type 'help' for available commands",
		"Available commands",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
	if len(transport.sent) != 1 || transport.sent[0].Type != protocol.TypeExit {
		t.Fatalf("expected only EXIT on the wire, got %+v", transport.sent)
	}
}

func TestRunMapsWordsToCommands(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.responses[protocol.TypeCreateContainer] = protocol.Success("Container created successfully with ID: abc")
	transport.responses[protocol.TypeDeleteContainer] = protocol.Success("Container deleted successfully")
	_, _, err := runApp(t, transport, "CREATE nginx:latest web\ndelete abc\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(transport.sent) != 3 {
		t.Fatalf("expected 3 commands, got %+v", transport.sent)
	}
	create := transport.sent[0]
	if create.Type != protocol.TypeCreateContainer || create.Param(protocol.ParamImage) != "nginx:latest" || create.Param(protocol.ParamName) != "web" {
		t.Fatalf("unexpected create command: %+v", create)
	}
	del := transport.sent[1]
	if del.Type != protocol.TypeDeleteContainer || del.Param(protocol.ParamID) != "abc" {
		t.Fatalf("unexpected delete command: %+v", del)
	}
}

func TestRunRendersImageTable(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.responses[protocol.TypeListImages] = protocol.SuccessWithData("Images retrieved successfully", []protocol.ImageInfo{
		{ID: "sha256:0123456789abcdef0123", Repository: "nginx", Tag: "latest", Size: 1_500_000, Created: 1_700_000_000},
	})
	out, _, err := runApp(t, transport, "images\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"IMAGE ID", "REPOSITORY:TAG", "0123456789ab", "nginx:latest", "1.5MB", "2 hours ago", "Total: 1 image(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRunRendersContainerTablesAndEmptyLists(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.responses[protocol.TypeListContainers] = protocol.SuccessWithData("Containers retrieved successfully", []protocol.ContainerInfo{})
	out, _, err := runApp(t, transport, "ps\nps -a\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "No containers found (use 'ps -a' to see all)") {
		t.Fatalf("missing running-only empty message:\n%s", out)
	}
	if transport.sent[0].Param(protocol.ParamAll) != "false" || transport.sent[1].Param(protocol.ParamAll) != "true" {
		t.Fatalf("unexpected all params: %+v", transport.sent)
	}

	transport = newFakeTransport()
	transport.responses[protocol.TypeListContainers] = protocol.SuccessWithData("Containers retrieved successfully", []protocol.ContainerInfo{
		{ID: "fedcba9876543210", Name: "web", Image: "nginx", State: "running", Status: "Up 2 minutes"},
		{ID: "0011223344556677", Name: "db", Image: "postgres", State: "exited", Status: "Exited (0)"},
	})
	out, _, err = runApp(t, transport, "containers -a\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"CONTAINER ID", "fedcba987654", "Up 2 minutes", "postgres", "Total: 2 container(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRunReportsFailureResponses(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.responses[protocol.TypeStartContainer] = protocol.Failure("Command execution failed: no such container")
	out, errOut, err := runApp(t, transport, "start nope\nexit\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(errOut, "✗ Error: Command execution failed: no such container") {
		t.Fatalf("missing failure line in stderr:\n%s", errOut)
	}
	if strings.Contains(out, "no such container") {
		t.Fatalf("failure message must not be printed as success:\n%s", out)
	}
}

func TestRunSendsExitOnEOF(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	_, _, err := runApp(t, transport, "ping")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(transport.sent) != 2 || transport.sent[1].Type != protocol.TypeExit {
		t.Fatalf("expected trailing line then EXIT, got %+v", transport.sent)
	}
}

func TestRunStopsOnTransportError(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.err = errors.New("connection reset")
	_, _, err := runApp(t, transport, "ping\nping\n")
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("loop must stop after the first transport error, sent=%d", len(transport.sent))
	}
	if transport.closed != 1 {
		t.Fatalf("expected transport closed, got %d", transport.closed)
	}
}

func TestRunStopsOnUndecodableData(t *testing.T) {
	testlog.Start(t)

	transport := newFakeTransport()
	transport.responses[protocol.TypeListImages] = protocol.SuccessWithData("Images retrieved successfully", "not-a-list")
	_, _, err := runApp(t, transport, "images\n")
	if err == nil || !strings.Contains(err.Error(), "decode images") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestCreatedAgo(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	if got := createdAgo(0, now); got != "N/A" {
		t.Fatalf("zero timestamp: got %q", got)
	}
	if got := createdAgo(1_000_000-3*60, now); got != "3 minutes ago" {
		t.Fatalf("three minutes: got %q", got)
	}
}
