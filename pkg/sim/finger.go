package sim

import "github.com/robotalks/r503.go/pkg/r503"

// Finger is a simulated finger placed on the sensor. Impressions of the
// same finger match each other.
type Finger struct {
	// ID identifies the finger, only the lower 14 bits are significant.
	ID uint16
	// Messy makes captured images unusable for feature extraction.
	Messy bool
}

const (
	imageMarker    byte = 0x5A
	messyMarker    byte = 0x33
	templateMarker byte = 0x03
	idMask              = 0x3FFF

	// templatePadding follows the features in a character buffer.
	templatePadding = 256
	matchConfidence = 200
)

// renderImage draws an impression of f. Rendered images and templates
// keep bytes below 0x80 (padding aside) so a data stream never carries a
// start code inside a payload.
func renderImage(f Finger, size int) []byte {
	img := make([]byte, size)
	for i := range img {
		img[i] = byte(int(f.ID)*31+i*7) & 0x7F
	}
	if size >= 3 {
		img[0], img[1] = byte(f.ID>>7)&0x7F, byte(f.ID)&0x7F
		img[2] = imageMarker
		if f.Messy {
			img[2] = messyMarker
		}
	}
	return img
}

func imageFinger(img []byte) (uint16, r503.Code) {
	if len(img) == 0 {
		return 0, r503.CodeNoImage
	}
	if len(img) < 3 || img[2] != imageMarker {
		return 0, r503.CodeImageMessy
	}
	return uint16(img[0])<<7 | uint16(img[1]), r503.CodeOK
}

func renderTemplate(id uint16, size int) []byte {
	t := make([]byte, size+templatePadding)
	for i := 0; i < size; i++ {
		t[i] = byte(int(id)+i*13) & 0x7F
	}
	if size >= 3 {
		t[0], t[1], t[2] = templateMarker, byte(id>>7)&0x7F, byte(id)&0x7F
	}
	for i := size; i < len(t); i++ {
		t[i] = 0xFF
	}
	return t
}

func templateFinger(t []byte) (uint16, bool) {
	if len(t) < 3 || t[0] != templateMarker {
		return 0, false
	}
	return uint16(t[1])<<7 | uint16(t[2]), true
}
