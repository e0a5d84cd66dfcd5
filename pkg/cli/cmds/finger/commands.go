package finger

import (
	"fmt"
	"io/ioutil"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/r503.go/pkg/bridge"
	"github.com/robotalks/r503.go/pkg/cli/sh"
)

var (
	bufferArg   = sh.Arg{Name: "BUFFER", Field: sh.BufferField}
	locationArg = sh.Arg{Name: "LOCATION", Field: sh.LocationField}
)

var (
	// TakeImageCmd captures a finger image.
	TakeImageCmd = sh.RequestCmd("take-image", bridge.OpTakeImage, []string{"img"})

	// ExtractCmd extracts features of the image into a buffer.
	ExtractCmd = sh.RequestCmd("extract", bridge.OpExtractFeatures, []string{"x"}, bufferArg)

	// CreateCmd merges buffers into a template.
	CreateCmd = sh.RequestCmd("create", bridge.OpCreateTemplate, nil)

	// StoreCmd stores a buffer into the library.
	StoreCmd = sh.RequestCmd("store", bridge.OpStoreTemplate, nil, bufferArg, locationArg)

	// LoadCmd loads a template from the library.
	LoadCmd = sh.RequestCmd("load", bridge.OpLoadTemplate, nil, bufferArg, locationArg)

	// DeleteCmd deletes templates from the library.
	DeleteCmd = sh.RequestCmd("delete", bridge.OpDeleteTemplates, []string{"rm"},
		locationArg, sh.Arg{Name: "COUNT", Field: sh.CountField, Optional: true})

	// EmptyCmd deletes all templates.
	EmptyCmd = sh.RequestCmd("empty", bridge.OpEmptyLibrary, nil)

	// MatchCmd compares buffers 1 and 2.
	MatchCmd = sh.RequestCmd("match", bridge.OpMatchFinger, nil)

	// SearchCmd searches the library for a buffer.
	SearchCmd = sh.RequestCmd("search", bridge.OpSearchFinger, nil, bufferArg,
		sh.Arg{Name: "START", Field: sh.LocationField, Optional: true},
		sh.Arg{Name: "COUNT", Field: sh.CountField, Optional: true})

	// DownloadImageCmd saves the image buffer into a file.
	DownloadImageCmd = ishell.Cmd{
		Name: "download-image",
		Help: "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			download(c, &bridge.Request{Op: bridge.OpDownloadImage}, c.Args)
		}),
	}

	// UploadImageCmd sends an image file to the image buffer.
	UploadImageCmd = ishell.Cmd{
		Name: "upload-image",
		Help: "FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			upload(c, &bridge.Request{Op: bridge.OpUploadImage}, c.Args)
		}),
	}

	// DownloadTemplateCmd saves a buffer into a file.
	DownloadTemplateCmd = ishell.Cmd{
		Name: "download-template",
		Help: "BUFFER FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req := &bridge.Request{Op: bridge.OpDownloadTemplate}
			if err := sh.ParseArgs(req, c.Args, bufferArg); err != nil {
				c.Err(err)
				return
			}
			download(c, req, c.Args[1:])
		}),
	}

	// UploadTemplateCmd sends a template file to a buffer.
	UploadTemplateCmd = ishell.Cmd{
		Name: "upload-template",
		Help: "BUFFER FILE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			req := &bridge.Request{Op: bridge.OpUploadTemplate}
			if err := sh.ParseArgs(req, c.Args, bufferArg); err != nil {
				c.Err(err)
				return
			}
			upload(c, req, c.Args[1:])
		}),
	}

	// EnrollCmd enrolls a finger with two impressions.
	EnrollCmd = ishell.Cmd{
		Name: "enroll",
		Help: "LOCATION",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var req bridge.Request
			if err := sh.ParseArgs(&req, c.Args, locationArg); err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context(true)
			defer cancel()
			err := bridge.Enroll(ctx, s.Conn, uint16(req.Location), func(n int) {
				if s.OutputJSON {
					return
				}
				if n == 0 {
					c.Println("Remove finger")
				} else {
					c.Printf("Place finger (%d/2)\n", n)
				}
			})
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, map[string]uint32{"location": req.Location},
				fmt.Sprintf("Enrolled at %d", req.Location))
		}),
	}

	// IdentifyCmd captures a finger and searches the library.
	IdentifyCmd = ishell.Cmd{
		Name:    "identify",
		Aliases: []string{"id"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context(true)
			defer cancel()
			if !s.OutputJSON {
				c.Println("Place finger")
			}
			result, err := bridge.Identify(ctx, s.Conn)
			if err != nil {
				c.Err(err)
				return
			}
			text := fmt.Sprintf("Found at %d, confidence %d", result.Location, result.Confidence)
			if !result.Code.OK() {
				text = result.Code.String()
			}
			s.Print(c, result, text)
		}),
	}
)

func download(c *ishell.Context, req *bridge.Request, args []string) {
	if len(args) < 1 {
		c.Err(fmt.Errorf("FILE required"))
		return
	}
	s := sh.ShellFrom(c)
	ctx, cancel := s.Context(false)
	defer cancel()
	resp, err := bridge.CallOK(ctx, s.Conn, req)
	if err != nil {
		c.Err(err)
		return
	}
	if err = ioutil.WriteFile(args[0], resp.Data, 0644); err != nil {
		c.Err(err)
		return
	}
	s.Print(c, map[string]interface{}{"file": args[0], "size": len(resp.Data)},
		fmt.Sprintf("%d bytes saved to %s", len(resp.Data), args[0]))
}

func upload(c *ishell.Context, req *bridge.Request, args []string) {
	if len(args) < 1 {
		c.Err(fmt.Errorf("FILE required"))
		return
	}
	data, err := ioutil.ReadFile(args[0])
	if err != nil {
		c.Err(err)
		return
	}
	req.Data = data
	sh.DoCommand(c, req)
}

func init() {
	sh.AddCmds(
		TakeImageCmd,
		ExtractCmd,
		CreateCmd,
		StoreCmd,
		LoadCmd,
		DeleteCmd,
		EmptyCmd,
		MatchCmd,
		SearchCmd,
		&DownloadImageCmd,
		&UploadImageCmd,
		&DownloadTemplateCmd,
		&UploadTemplateCmd,
		&EnrollCmd,
		&IdentifyCmd,
	)
}
