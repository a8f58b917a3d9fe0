package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/protocol/command"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const (
	prompt        = "dockctl> "
	clearSequence = "\033[H\033[2J"
)

// Transport is one established broker session. *session.Client satisfies it.
type Transport interface {
	Greeting() protocol.Response
	Do(ctx context.Context, cmd protocol.Command) (protocol.Response, error)
	Close() error
}

// App is the interactive console loop. It is single threaded: every line
// sends at most one command and waits for its response.
type App struct {
	transport Transport
	reader    *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	prompt    bool
	now       func() time.Time
}

// NewApp builds a console over transport. The prompt is shown only when in
// is a terminal.
func NewApp(transport Transport, in io.Reader, out io.Writer, errOut io.Writer) *App {
	return &App{
		transport: transport,
		reader:    bufio.NewReader(in),
		out:       out,
		errOut:    errOut,
		prompt:    IsTerminal(in),
		now:       time.Now,
	}
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Run prints the greeting and serves operator lines until exit, EOF on the
// input, or a transport failure. The transport is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.disconnect()

	a.printBanner()
	greeting := a.transport.Greeting()
	if greeting.Success {
		fmt.Fprintf(a.out, "✓ %s\n", greeting.Message)
	} else {
		fmt.Fprintf(a.errOut, "✗ Error: %s\n", greeting.Message)
	}
	fmt.Fprintln(a.out, "\nType 'help' to see available commands")
	fmt.Fprintln(a.out)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := a.promptLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Msg("client.App stdin closed, sending EXIT")
				_, sendErr := a.send(ctx, command.Exit{})
				return sendErr
			}
			return err
		}
		done, err := a.execute(ctx, strings.Fields(line))
		if err != nil {
			log.Error().Err(err).Msg("client.App session lost")
			return err
		}
		if done {
			return nil
		}
	}
}

// promptLine returns the next input line. A final unterminated line is
// returned before io.EOF.
func (a *App) promptLine() (string, error) {
	if a.prompt {
		fmt.Fprint(a.out, prompt)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// execute handles one tokenized line. done is true once EXIT was sent.
func (a *App) execute(ctx context.Context, args []string) (done bool, err error) {
	if len(args) == 0 {
		return false, nil
	}
	word := strings.ToLower(args[0])
	switch word {
	case "help":
		a.printHelp()
	case "clear":
		fmt.Fprint(a.out, clearSequence)
		a.printBanner()
	case "ping":
		return false, a.sendAndPrint(ctx, command.Ping{})
	case "images", "list-images":
		return false, a.listImages(ctx)
	case "pull":
		if len(args) < 2 {
			return false, a.usage("pull <image-name>")
		}
		fmt.Fprintf(a.out, "Pulling image: %s (this may take a while...)\n", args[1])
		return false, a.sendAndPrint(ctx, command.PullImage{Image: args[1]})
	case "ps", "containers":
		if len(args) > 2 || (len(args) == 2 && args[1] != "-a") {
			return false, a.usage(word + " [-a]")
		}
		return false, a.listContainers(ctx, len(args) == 2)
	case "create":
		if len(args) < 3 {
			return false, a.usage("create <image> <container-name>")
		}
		return false, a.sendAndPrint(ctx, command.CreateContainer{Image: args[1], Name: args[2]})
	case "start", "stop", "rm", "delete", "status":
		if len(args) < 2 {
			return false, a.usage(word + " <container-id>")
		}
		return false, a.sendAndPrint(ctx, containerRequest(word, args[1]))
	case "exit", "quit":
		return true, a.sendAndPrint(ctx, command.Exit{})
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n", word)
		fmt.Fprintln(a.out, "Type 'help' for available commands")
	}
	return false, nil
}

func containerRequest(word string, id string) command.Request {
	switch word {
	case "start":
		return command.StartContainer{ID: id}
	case "stop":
		return command.StopContainer{ID: id}
	case "status":
		return command.ContainerStatus{ID: id}
	default:
		return command.DeleteContainer{ID: id}
	}
}

func (a *App) usage(line string) error {
	fmt.Fprintf(a.out, "Usage: %s\n", line)
	return nil
}

// send performs one exchange. Failure responses are reported here; the
// caller only renders successes.
func (a *App) send(ctx context.Context, req command.Request) (protocol.Response, error) {
	cmd := command.Encode(req)
	started := time.Now()
	resp, err := a.transport.Do(ctx, cmd)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("send %s: %w", cmd.Type, err)
	}
	log.Debug().
		Str("type", string(cmd.Type)).
		Bool("success", resp.Success).
		Dur("elapsed", time.Since(started)).
		Msg("client.App command completed")
	if !resp.Success {
		fmt.Fprintf(a.errOut, "✗ Error: %s\n", resp.Message)
	}
	return resp, nil
}

func (a *App) sendAndPrint(ctx context.Context, req command.Request) error {
	resp, err := a.send(ctx, req)
	if err != nil {
		return err
	}
	if resp.Success {
		fmt.Fprintln(a.out, resp.Message)
	}
	return nil
}

func (a *App) listImages(ctx context.Context) error {
	resp, err := a.send(ctx, command.ListImages{})
	if err != nil || !resp.Success {
		return err
	}
	var images []protocol.ImageInfo
	if err := resp.Into(&images); err != nil {
		return fmt.Errorf("decode images: %w", err)
	}
	if len(images) == 0 {
		fmt.Fprintln(a.out, "No images found")
		return nil
	}
	return renderImages(a.out, images, a.now())
}

func (a *App) listContainers(ctx context.Context, all bool) error {
	resp, err := a.send(ctx, command.ListContainers{All: all})
	if err != nil || !resp.Success {
		return err
	}
	var containers []protocol.ContainerInfo
	if err := resp.Into(&containers); err != nil {
		return fmt.Errorf("decode containers: %w", err)
	}
	if len(containers) == 0 {
		if all {
			fmt.Fprintln(a.out, "No containers found")
		} else {
			fmt.Fprintln(a.out, "No containers found (use 'ps -a' to see all)")
		}
		return nil
	}
	return renderContainers(a.out, containers)
}

func (a *App) disconnect() {
	if err := a.transport.Close(); err != nil {
		log.Warn().Err(err).Msg("client.App close failed")
	}
	fmt.Fprintln(a.out, "\n✓ Disconnected from server")
}

func (a *App) printBanner() {
	fmt.Fprintln(a.out, "Docker Remote Manager - client")
	fmt.Fprintln(a.out, strings.Repeat("=", 30))
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Available commands")
	fmt.Fprintln(a.out, "  Images:")
	fmt.Fprintln(a.out, "    images, list-images    list all Docker images")
	fmt.Fprintln(a.out, "    pull <image>           pull an image from its registry")
	fmt.Fprintln(a.out, "  Containers:")
	fmt.Fprintln(a.out, "    ps, containers         list running containers")
	fmt.Fprintln(a.out, "    ps -a                  list all containers")
	fmt.Fprintln(a.out, "    create <img> <name>    create a new container")
	fmt.Fprintln(a.out, "    start <id>             start a container")
	fmt.Fprintln(a.out, "    stop <id>              stop a container")
	fmt.Fprintln(a.out, "    rm, delete <id>        delete a container")
	fmt.Fprintln(a.out, "    status <id>            show container status")
	fmt.Fprintln(a.out, "  General:")
	fmt.Fprintln(a.out, "    ping                   test the server connection")
	fmt.Fprintln(a.out, "    help                   show this help")
	fmt.Fprintln(a.out, "    clear                  clear the screen")
	fmt.Fprintln(a.out, "    exit, quit             disconnect from the server")
	fmt.Fprintln(a.out)
}
