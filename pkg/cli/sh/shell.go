// Package sh provides an interactive shell driving a sensor.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/env"
	"github.com/robotalks/r503.go/pkg/r503"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	// Timeout bounds a single command.
	Timeout time.Duration
	// FlowTimeout bounds commands waiting for a finger.
	FlowTimeout time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *env.Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly    bool
	outputJSON  bool
	timeout     = 10 * time.Second
	flowTimeout = time.Minute

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Timeout of a command.")
	flag.DurationVar(&flowTimeout, "finger-timeout", flowTimeout, "Timeout waiting for a finger.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,
		FlowTimeout: flowTimeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect connects the sensor using the config, replacing the current
// connection.
func (s *Shell) Connect() error {
	conn, err := s.Config.Connect()
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conn.Name))
	return nil
}

// Disconnect disconnects current sensor.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Context creates the context for a command, with FlowTimeout if the
// command waits for a finger.
func (s *Shell) Context(waitFinger bool) (context.Context, func()) {
	if waitFinger {
		return context.WithTimeout(context.Background(), s.FlowTimeout)
	}
	return context.WithTimeout(context.Background(), s.Timeout)
}

// Do runs a request on the connected sensor.
func (s *Shell) Do(req *bridge.Request) (*bridge.Response, error) {
	if s.Conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	ctx, cancel := s.Context(false)
	defer cancel()
	return s.Conn.Do(ctx, req)
}

// FormatResponse prints a Response into friendly string for display.
func FormatResponse(resp *bridge.Response) string {
	code := r503.Code(resp.Code)
	if !code.OK() {
		return fmt.Sprintf("%s (0x%02X)", code, resp.Code)
	}
	if resp.Text != "" {
		return resp.Text
	}
	if len(resp.Values) > 0 {
		vals := make([]string, len(resp.Values))
		for n, val := range resp.Values {
			vals[n] = strconv.FormatUint(uint64(val), 10)
		}
		return "OK " + strings.Join(vals, " ")
	}
	if len(resp.Data) > 0 {
		return fmt.Sprintf("OK %d bytes", len(resp.Data))
	}
	return "OK"
}

// Print prints v in JSON if OutputJSON, otherwise the text.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) error {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	c.Println(text)
	return nil
}

// DoCommand runs a request and prints the result.
func DoCommand(c *ishell.Context, req *bridge.Request) (*bridge.Response, error) {
	s := ShellFrom(c)
	resp, err := s.Do(req)
	if err != nil {
		c.Err(err)
		return resp, err
	}
	return resp, s.Print(c, resp, FormatResponse(resp))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if err := s.Connect(); err != nil {
			log.Fatalf("connect failed: %v", err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a sensor.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[sim|PORT|URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				switch target := c.Args[0]; {
				case target == "sim":
					s.Config.Sim, s.Config.Remote = true, ""
				case strings.Contains(target, "://"):
					s.Config.Sim, s.Config.Remote = false, target
				default:
					s.Config.Sim, s.Config.Remote, s.Config.Port = false, "", target
				}
			}
			if err := s.Connect(); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current sensor.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
