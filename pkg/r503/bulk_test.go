package r503

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendData(t *testing.T) {
	testCases := []struct {
		name       string
		size       int
		packetSize int
		lengths    []int
	}{
		{"remainder", 300, 128, []int{128, 128, 44}},
		{"exact multiple", 256, 128, []int{128, 128}},
		{"single short", 10, 32, []int{10}},
		{"empty", 0, 32, []int{0}},
		{"default packet size", 40, 0, []int{32, 8}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.size)
			for i := range data {
				data[i] = byte(i * 7)
			}
			ft := newFakeTransport(nil)
			require.NoError(t, SendData(ft, DefaultAddress, tc.packetSize, data))

			var parser Parser
			pkts := parser.ParseBytes(ft.sent())
			require.Len(t, pkts, len(tc.lengths))
			joined := []byte{}
			for n, pkt := range pkts {
				require.Equalf(t, tc.lengths[n], len(pkt.Payload), "packet %d", n)
				if n+1 < len(pkts) {
					require.Equal(t, PacketDataStart, pkt.Type)
				} else {
					require.Equal(t, PacketDataEnd, pkt.Type)
				}
				joined = append(joined, pkt.Payload...)
			}
			require.Equal(t, data, joined)
		})
	}
}

func dataStream(chunks ...[]byte) []byte {
	var out []byte
	for n, chunk := range chunks {
		typ := PacketDataStart
		if n+1 == len(chunks) {
			typ = PacketDataEnd
		}
		out = append(out, dataPacket(typ, chunk)...)
	}
	return out
}

func TestReceiveData(t *testing.T) {
	first, second := seq(50, 0x10), seq(20, 0x60)
	expect := append(append([]byte(nil), first...), second...)

	receivers := []struct {
		name     string
		receiver DataReceiver
	}{
		{"scan", &ScanReceiver{Budget: 200 * time.Millisecond}},
		{"frame", &FrameReceiver{Timeout: 100 * time.Millisecond}},
	}
	for _, r := range receivers {
		t.Run(r.name, func(t *testing.T) {
			t.Run("two packets", func(t *testing.T) {
				ft := newFakeTransport(nil)
				ft.inject(dataStream(first, second))
				data, code, err := r.receiver.ReceiveData(ft, 0)
				require.NoError(t, err)
				require.Equal(t, CodeOK, code)
				require.Len(t, data, 70)
				require.Equal(t, expect, data)
			})
			t.Run("leading stray bytes", func(t *testing.T) {
				ft := newFakeTransport(nil)
				ft.inject([]byte{0x00, 0x55, 0x13}, dataStream(first, second))
				data, code, err := r.receiver.ReceiveData(ft, 0)
				require.NoError(t, err)
				require.Equal(t, CodeOK, code)
				require.Equal(t, expect, data)
			})
			t.Run("single end packet", func(t *testing.T) {
				ft := newFakeTransport(nil)
				ft.inject(dataStream(second))
				data, code, err := r.receiver.ReceiveData(ft, 0)
				require.NoError(t, err)
				require.Equal(t, CodeOK, code)
				require.Equal(t, second, data)
			})
			t.Run("exceeds capacity", func(t *testing.T) {
				ft := newFakeTransport(nil)
				ft.inject(dataStream(first, second))
				data, code, err := r.receiver.ReceiveData(ft, 64)
				require.NoError(t, err)
				require.Equal(t, CodeNotEnoughMemory, code)
				require.Equal(t, expect[:64], data)
			})
			t.Run("no end packet", func(t *testing.T) {
				ft := newFakeTransport(nil)
				ft.inject(dataPacket(PacketDataStart, first))
				_, code, err := r.receiver.ReceiveData(ft, 0)
				require.NoError(t, err)
				require.Equal(t, CodeTimeout, code)
			})
		})
	}
}

func TestScanReceiverIgnoresChecksums(t *testing.T) {
	first, second := seq(32, 0x10), seq(12, 0x40)
	stream := dataStream(first, second)
	// corrupt the checksum of the first packet.
	stream[headerSize+len(first)]++
	ft := newFakeTransport(nil)
	ft.inject(stream)
	data, code, err := (&ScanReceiver{Budget: 200 * time.Millisecond}).ReceiveData(ft, 0)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	require.Equal(t, append(append([]byte(nil), first...), second...), data)
}

func TestScanReceiverTimeoutKeepsCompleteChunks(t *testing.T) {
	first, second := seq(32, 0x10), seq(12, 0x40)
	ft := newFakeTransport(nil)
	ft.inject(dataPacket(PacketDataStart, first), dataPacket(PacketDataStart, second))
	data, code, err := (&ScanReceiver{Budget: 100 * time.Millisecond}).ReceiveData(ft, 0)
	require.NoError(t, err)
	require.Equal(t, CodeTimeout, code)
	require.Equal(t, first, data)
}

func TestFrameReceiverRejectsChecksum(t *testing.T) {
	first, second := seq(32, 0x10), seq(12, 0x40)
	stream := dataStream(first, second)
	stream[headerSize+len(first)]++
	ft := newFakeTransport(nil)
	ft.inject(stream)
	_, code, err := (&FrameReceiver{Timeout: 100 * time.Millisecond}).ReceiveData(ft, 0)
	require.NoError(t, err)
	require.Equal(t, CodeChecksumMismatch, code)
}

func TestFrameReceiverRejectsAck(t *testing.T) {
	ft := newFakeTransport(nil)
	ft.inject(dataPacket(PacketDataStart, seq(8, 0x10)), ack(CodeOK))
	data, code, err := (&FrameReceiver{Timeout: 100 * time.Millisecond}).ReceiveData(ft, 0)
	require.NoError(t, err)
	require.Equal(t, CodePacketMismatch, code)
	require.Equal(t, seq(8, 0x10), data)
}
