package sh

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/r503.go/pkg/bridge"
)

// Field sets a Request field from a parsed argument.
type Field func(req *bridge.Request, val uint32)

// Request fields.
var (
	BufferField   Field = func(req *bridge.Request, val uint32) { req.Buffer = val }
	LocationField Field = func(req *bridge.Request, val uint32) { req.Location = val }
	CountField    Field = func(req *bridge.Request, val uint32) { req.Count = val }
	ValueField    Field = func(req *bridge.Request, val uint32) { req.Value = val }
)

// Arg describes a numeric command argument.
type Arg struct {
	Name     string
	Field    Field
	Optional bool
	// Names maps symbolic values, matched case-insensitively.
	Names map[string]uint32
}

// Parse parses the argument value.
func (a Arg) Parse(s string) (uint32, error) {
	if val, ok := a.Names[strings.ToLower(s)]; ok {
		return val, nil
	}
	val, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", a.Name, s)
	}
	return uint32(val), nil
}

// ParseArgs fills req with args.
func ParseArgs(req *bridge.Request, args []string, specs ...Arg) error {
	for n, spec := range specs {
		if n >= len(args) {
			if spec.Optional {
				return nil
			}
			return fmt.Errorf("%s required", spec.Name)
		}
		val, err := spec.Parse(args[n])
		if err != nil {
			return err
		}
		spec.Field(req, val)
	}
	return nil
}

// Usage formats the help text of args.
func Usage(specs ...Arg) string {
	names := make([]string, len(specs))
	for n, spec := range specs {
		names[n] = spec.Name
		if spec.Optional {
			names[n] = "[" + names[n] + "]"
		}
	}
	return strings.Join(names, " ")
}

// RequestCmd creates a command running op with numeric args.
func RequestCmd(name, op string, aliases []string, specs ...Arg) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    Usage(specs...),
		Func: MustBeConnected(func(c *ishell.Context) {
			req := &bridge.Request{Op: op}
			if err := ParseArgs(req, c.Args, specs...); err != nil {
				c.Err(err)
				return
			}
			DoCommand(c, req)
		}),
	}
}
