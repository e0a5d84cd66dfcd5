// Package all registers all shell commands.
package all

import (
	// commands
	_ "github.com/robotalks/r503.go/pkg/cli/cmds/device"
	_ "github.com/robotalks/r503.go/pkg/cli/cmds/finger"
)
