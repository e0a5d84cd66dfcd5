package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/r503.go/pkg/framework"
	"github.com/robotalks/r503.go/pkg/r503"
)

// Server runs requests against a Sensor. Requests from all connections
// are serialized as the sensor handles one exchange at a time.
type Server struct {
	Sensor *r503.Sensor

	lock sync.Mutex
}

// NewServer creates a Server.
func NewServer(sensor *r503.Sensor) *Server {
	return &Server{Sensor: sensor}
}

// Do implements Doer.
func (s *Server) Do(ctx context.Context, req *Request) (*Response, error) {
	return s.Handle(req), nil
}

// Handle runs a request.
func (s *Server) Handle(req *Request) *Response {
	resp := &Response{Seq: req.Seq}
	op, ok := operations[req.Op]
	if !ok {
		resp.Error = fmt.Sprintf("unsupported operation %q", req.Op)
		return resp
	}
	s.lock.Lock()
	code, err := op(s.Sensor, req, resp)
	s.lock.Unlock()
	resp.Code = uint32(code)
	if err != nil {
		resp.Error = err.Error()
		glog.Warningf("%s failed: %v", req.Op, err)
	} else {
		glog.V(1).Infof("%s: %v", req.Op, code)
	}
	return resp
}

// Serve answers requests from rw until reading fails or ctx is done.
// rw is closed on return if it's an io.Closer.
func (s *Server) Serve(ctx context.Context, rw PacketReadWriter) error {
	closer := closerOf(rw)
	return fx.RunWithContextCloser(ctx, closer, func() error {
		for {
			pkt, err := rw.ReadPacket()
			if err != nil {
				return err
			}
			var resp *Response
			if req, err := DecodeRequest(pkt); err != nil {
				glog.Warningf("bad request: %v", err)
				resp = &Response{Error: fmt.Sprintf("bad request: %v", err)}
			} else {
				resp = s.Handle(req)
			}
			out, err := EncodeResponse(resp)
			if err != nil {
				return err
			}
			if err = rw.WritePacket(out); err != nil {
				return err
			}
		}
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func closerOf(v interface{}) io.Closer {
	if c, ok := v.(io.Closer); ok {
		return c
	}
	return nopCloser{}
}

type operation func(s *r503.Sensor, req *Request, resp *Response) (r503.Code, error)

func simple(fn func(*r503.Sensor) (r503.Code, error)) operation {
	return func(s *r503.Sensor, _ *Request, _ *Response) (r503.Code, error) {
		return fn(s)
	}
}

var operations = map[string]operation{
	OpInit: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		baud := int(req.Value)
		if baud == 0 {
			baud = r503.DefaultBaudrate
		}
		return s.Init(baud)
	},
	OpHandShake:      simple((*r503.Sensor).HandShake),
	OpCheckSensor:    simple((*r503.Sensor).CheckSensor),
	OpCancel:         simple((*r503.Sensor).CancelInstruction),
	OpSoftReset:      simple((*r503.Sensor).SoftReset),
	OpTakeImage:      simple((*r503.Sensor).TakeImage),
	OpCreateTemplate: simple((*r503.Sensor).CreateTemplate),
	OpEmptyLibrary:   simple((*r503.Sensor).EmptyLibrary),
	OpVerifyPassword: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.VerifyPassword(req.Value)
	},
	OpSetAddress: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetAddress(req.Value)
	},
	OpSystemParameters: func(s *r503.Sensor, _ *Request, resp *Response) (r503.Code, error) {
		p, err := s.ReadSystemParameters()
		if err == nil && p.Code.OK() {
			resp.Values = []uint32{
				uint32(p.StatusRegister), uint32(p.SystemID),
				uint32(p.LibrarySize), uint32(p.SecurityLevel),
				p.Address, uint32(p.PacketSize), uint32(p.Baudrate),
			}
			resp.Text = p.String()
		}
		return p.Code, err
	},
	OpDeviceInfo: func(s *r503.Sensor, _ *Request, resp *Response) (r503.Code, error) {
		info, err := s.ReadDeviceInfo()
		if err == nil && info.Code.OK() {
			resp.Values = []uint32{
				uint32(info.SensorWidth), uint32(info.SensorHeight),
				uint32(info.TemplateSize), uint32(info.DatabaseSize),
			}
			resp.Text = info.String()
		}
		return info.Code, err
	},
	OpSetParameter: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetParameter(byte(req.Buffer), byte(req.Value))
	},
	OpSetSecurityLevel: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetSecurityLevel(byte(req.Value))
	},
	OpSetBaudrate: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetBaudrate(int(req.Value))
	},
	OpSetPacketSize: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetPacketSize(int(req.Value))
	},
	OpAuraLED: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.SetAuraLED(r503.LEDMode(req.Buffer), r503.LEDColor(req.Value),
			byte(req.Location), byte(req.Count))
	},
	OpTemplateCount: func(s *r503.Sensor, _ *Request, resp *Response) (r503.Code, error) {
		r, err := s.GetTemplateCount()
		resp.Values = []uint32{uint32(r.Count)}
		return r.Code, err
	},
	OpRandomNumber: func(s *r503.Sensor, _ *Request, resp *Response) (r503.Code, error) {
		r, err := s.GetRandomNumber()
		resp.Values = []uint32{r.Number}
		return r.Code, err
	},
	OpIndexTable: func(s *r503.Sensor, req *Request, resp *Response) (r503.Code, error) {
		t, err := s.ReadIndexTable(byte(req.Value))
		if err == nil && t.Code.OK() {
			for _, loc := range t.Locations() {
				resp.Values = append(resp.Values, uint32(loc))
			}
			resp.Data = append([]byte(nil), t.Bitmap[:]...)
		}
		return t.Code, err
	},
	OpExtractFeatures: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.ExtractFeatures(byte(req.Buffer))
	},
	OpStoreTemplate: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.StoreTemplate(byte(req.Buffer), uint16(req.Location))
	},
	OpLoadTemplate: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.LoadTemplate(byte(req.Buffer), uint16(req.Location))
	},
	OpDeleteTemplates: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		count := uint16(req.Count)
		if count == 0 {
			count = 1
		}
		return s.DeleteTemplates(uint16(req.Location), count)
	},
	OpMatchFinger: func(s *r503.Sensor, _ *Request, resp *Response) (r503.Code, error) {
		r, err := s.MatchFinger()
		resp.Values = []uint32{uint32(r.Confidence)}
		return r.Code, err
	},
	OpSearchFinger: func(s *r503.Sensor, req *Request, resp *Response) (r503.Code, error) {
		var r r503.SearchResult
		var err error
		if req.Count == 0 {
			r, err = s.SearchFinger(byte(req.Buffer))
		} else {
			r, err = s.SearchFingerRange(byte(req.Buffer), uint16(req.Location), uint16(req.Count))
		}
		resp.Values = []uint32{uint32(r.Location), uint32(r.Confidence)}
		return r.Code, err
	},
	OpDownloadImage: func(s *r503.Sensor, _ *Request, resp *Response) (code r503.Code, err error) {
		resp.Data, code, err = s.DownloadImage()
		return
	},
	OpUploadImage: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.UploadImage(req.Data)
	},
	OpDownloadTemplate: func(s *r503.Sensor, req *Request, resp *Response) (code r503.Code, err error) {
		resp.Data, code, err = s.DownloadTemplate(byte(req.Buffer))
		return
	},
	OpUploadTemplate: func(s *r503.Sensor, req *Request, _ *Response) (r503.Code, error) {
		return s.UploadTemplate(byte(req.Buffer), req.Data)
	},
}
