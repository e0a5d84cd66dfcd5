package device

import (
	"github.com/abiosoft/ishell"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/cli/sh"
	"github.com/robotalks/r503.go/pkg/r503"
)

var (
	ledModes = map[string]uint32{
		"breathing": uint32(r503.LEDBreathing),
		"flash":     uint32(r503.LEDFlash),
		"on":        uint32(r503.LEDOn),
		"off":       uint32(r503.LEDOff),
		"fade-in":   uint32(r503.LEDFadeIn),
		"fade-out":  uint32(r503.LEDFadeOut),
	}
	ledColors = map[string]uint32{
		"red":    uint32(r503.LEDRed),
		"blue":   uint32(r503.LEDBlue),
		"purple": uint32(r503.LEDPurple),
		"green":  uint32(r503.LEDGreen),
		"yellow": uint32(r503.LEDYellow),
		"cyan":   uint32(r503.LEDCyan),
		"white":  uint32(r503.LEDWhite),
	}
	packetSizes = map[string]uint32{"32": 32, "64": 64, "128": 128, "256": 256}
)

var (
	// InitCmd initializes the sensor.
	InitCmd = sh.RequestCmd("init", bridge.OpInit, nil,
		sh.Arg{Name: "BAUD", Field: sh.ValueField, Optional: true})

	// HandShakeCmd checks the sensor is responding.
	HandShakeCmd = sh.RequestCmd("handshake", bridge.OpHandShake, []string{"hs"})

	// CheckCmd checks the sensor is working normally.
	CheckCmd = sh.RequestCmd("check", bridge.OpCheckSensor, nil)

	// CancelCmd cancels a running instruction.
	CancelCmd = sh.RequestCmd("cancel", bridge.OpCancel, nil)

	// VerifyPasswordCmd verifies a password.
	VerifyPasswordCmd = sh.RequestCmd("verify-password", bridge.OpVerifyPassword, []string{"vfy"},
		sh.Arg{Name: "PASSWORD", Field: sh.ValueField})

	// SetAddressCmd changes the address of the sensor.
	SetAddressCmd = sh.RequestCmd("set-address", bridge.OpSetAddress, nil,
		sh.Arg{Name: "ADDRESS", Field: sh.ValueField})

	// ParamsCmd reads system parameters.
	ParamsCmd = sh.RequestCmd("params", bridge.OpSystemParameters, []string{"p"})

	// InfoCmd reads device information.
	InfoCmd = sh.RequestCmd("info", bridge.OpDeviceInfo, []string{"i"})

	// SetParamCmd writes a system register.
	SetParamCmd = sh.RequestCmd("set-param", bridge.OpSetParameter, nil,
		sh.Arg{Name: "PARAM", Field: sh.BufferField},
		sh.Arg{Name: "VALUE", Field: sh.ValueField})

	// SecurityCmd sets the security level.
	SecurityCmd = sh.RequestCmd("security", bridge.OpSetSecurityLevel, nil,
		sh.Arg{Name: "LEVEL(1-5)", Field: sh.ValueField})

	// BaudCmd changes the baudrate of the sensor.
	BaudCmd = sh.RequestCmd("baud", bridge.OpSetBaudrate, nil,
		sh.Arg{Name: "BAUD", Field: sh.ValueField})

	// PacketSizeCmd changes the data packet size.
	PacketSizeCmd = sh.RequestCmd("packet-size", bridge.OpSetPacketSize, nil,
		sh.Arg{Name: "SIZE(32|64|128|256)", Field: sh.ValueField, Names: packetSizes})

	// LEDCmd controls the aura LED.
	LEDCmd = sh.RequestCmd("led", bridge.OpAuraLED, nil,
		sh.Arg{Name: "MODE", Field: sh.BufferField, Names: ledModes},
		sh.Arg{Name: "COLOR", Field: sh.ValueField, Names: ledColors},
		sh.Arg{Name: "SPEED", Field: sh.LocationField, Optional: true},
		sh.Arg{Name: "REPEAT", Field: sh.CountField, Optional: true})

	// CountCmd reads the number of stored templates.
	CountCmd = sh.RequestCmd("count", bridge.OpTemplateCount, nil)

	// RandomCmd asks for a random number.
	RandomCmd = sh.RequestCmd("random", bridge.OpRandomNumber, nil)

	// ResetCmd soft resets the sensor.
	ResetCmd = sh.RequestCmd("reset", bridge.OpSoftReset, nil)

	// IndexCmd lists used locations of an index table page.
	IndexCmd = ishell.Cmd{
		Name:    "index",
		Aliases: []string{"ls"},
		Help:    "[PAGE]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req := &bridge.Request{Op: bridge.OpIndexTable}
			if err := sh.ParseArgs(req, c.Args, sh.Arg{Name: "PAGE", Field: sh.ValueField, Optional: true}); err != nil {
				c.Err(err)
				return
			}
			resp, err := sh.ShellFrom(c).Do(req)
			if err != nil {
				c.Err(err)
				return
			}
			// Data holds the raw bitmap, not needed for display.
			resp.Data = nil
			sh.ShellFrom(c).Print(c, resp, sh.FormatResponse(resp))
		}),
	}
)

func init() {
	sh.AddCmds(
		InitCmd,
		HandShakeCmd,
		CheckCmd,
		CancelCmd,
		VerifyPasswordCmd,
		SetAddressCmd,
		ParamsCmd,
		InfoCmd,
		SetParamCmd,
		SecurityCmd,
		BaudCmd,
		PacketSizeCmd,
		LEDCmd,
		CountCmd,
		RandomCmd,
		ResetCmd,
		&IndexCmd,
	)
}
