// Package r503 drives the R503 optical fingerprint sensor.
//
// Frames on the serial link look like:
//
//	[0xEF 0x01][address:4][type:1][length:2][payload:length-2][checksum:2]
//
// All integers are big-endian. The checksum is the low 16 bits of the sum
// of the type byte, both length bytes and every payload byte.
//
// The host sends Command packets and the sensor answers each with one Ack
// packet whose first payload byte is the confirmation code. Images and
// templates are streamed as DataStart packets terminated by a DataEnd
// packet, without acknowledgement per packet.
//
// Every operation reports the outcome of the exchange as a Code, which
// includes conditions detected locally (timeout, checksum mismatch, ...).
// A non-nil error means the exchange could not be attempted or the
// transport failed.
package r503
