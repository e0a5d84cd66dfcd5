package bridge

import (
	"context"
	"time"

	"github.com/robotalks/r503.go/pkg/r503"
)

// FingerPollInterval is the pause between attempts to capture a finger.
var FingerPollInterval = 200 * time.Millisecond

// Call runs a request and returns its confirmation code. An operation
// failing with a code other than OK is not an error.
func Call(ctx context.Context, d Doer, req *Request) (r503.Code, *Response, error) {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return r503.CodeOK, resp, err
	}
	return r503.Code(resp.Code), resp, nil
}

// CallOK runs a request and converts a code other than OK into an error.
func CallOK(ctx context.Context, d Doer, req *Request) (*Response, error) {
	code, resp, err := Call(ctx, d, req)
	if err != nil {
		return resp, err
	}
	return resp, code.Err(req.Op)
}

// CaptureFinger waits for a finger and extracts its features into buffer.
func CaptureFinger(ctx context.Context, d Doer, buffer byte) error {
	for {
		code, _, err := Call(ctx, d, &Request{Op: OpTakeImage})
		if err != nil {
			return err
		}
		if code.OK() {
			break
		}
		if code != r503.CodeNoFinger {
			return code.Err(OpTakeImage)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(FingerPollInterval):
		}
	}
	_, err := CallOK(ctx, d, &Request{Op: OpExtractFeatures, Buffer: uint32(buffer)})
	return err
}

// WaitFingerRemoved waits until no finger is on the sensor.
func WaitFingerRemoved(ctx context.Context, d Doer) error {
	for {
		code, _, err := Call(ctx, d, &Request{Op: OpTakeImage})
		if err != nil {
			return err
		}
		if code == r503.CodeNoFinger {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(FingerPollInterval):
		}
	}
}

// Enroll captures a finger twice, merges the impressions and stores the
// template at location. prompt, when not nil, is called before each
// capture with the number of the impression and before lifting the finger
// with 0.
func Enroll(ctx context.Context, d Doer, location uint16, prompt func(n int)) error {
	for n := 1; n <= 2; n++ {
		if prompt != nil {
			prompt(n)
		}
		if err := CaptureFinger(ctx, d, byte(n)); err != nil {
			return err
		}
		if n == 1 {
			if prompt != nil {
				prompt(0)
			}
			if err := WaitFingerRemoved(ctx, d); err != nil {
				return err
			}
		}
	}
	if _, err := CallOK(ctx, d, &Request{Op: OpCreateTemplate}); err != nil {
		return err
	}
	_, err := CallOK(ctx, d, &Request{Op: OpStoreTemplate, Buffer: 1, Location: uint32(location)})
	return err
}

// Identify captures a finger and searches the library. The code is
// CodeNotFound if the finger is unknown.
func Identify(ctx context.Context, d Doer) (r503.SearchResult, error) {
	if err := CaptureFinger(ctx, d, 1); err != nil {
		return r503.SearchResult{}, err
	}
	code, resp, err := Call(ctx, d, &Request{Op: OpSearchFinger, Buffer: 1})
	result := r503.SearchResult{Code: code}
	if err != nil {
		return result, err
	}
	if len(resp.Values) >= 2 {
		result.Location, result.Confidence = uint16(resp.Values[0]), uint16(resp.Values[1])
	}
	return result, nil
}
