package http2

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/net/http2/hpack"
)

// OutgoingStats counts the bytes a single stream has contributed to the
// output buffer, split by purpose. Framing bytes are the 9-octet frame
// headers plus RST_STREAM/WINDOW_UPDATE payloads; header and data bytes are
// the respective frame payloads.
type OutgoingStats struct {
	FramingBytes uint64
	HeaderBytes  uint64
	DataBytes    uint64
}

func (st *OutgoingStats) addFraming(n int) {
	if st != nil {
		st.FramingBytes += uint64(n)
	}
}

// EncodeData appends one DATA frame for streamID to out, consuming exactly
// length bytes from src. A zero length with endStream set produces the
// zero-length end-of-stream DATA frame.
func EncodeData(streamID uint32, src *bytes.Buffer, length uint32, endStream bool, stats *OutgoingStats, out *bytes.Buffer) {
	var flags Flags
	if endStream {
		flags |= FlagDataEndStream
	}
	FrameHeader{Length: length, Type: FrameData, Flags: flags, StreamID: streamID}.appendTo(out)
	out.Write(src.Next(int(length)))
	stats.addFraming(FrameHeaderLen)
	if stats != nil {
		stats.DataBytes += uint64(length)
	}
}

// EncodeHeaders HPACK-encodes fields with enc and appends a HEADERS frame for
// streamID to out, followed by CONTINUATION frames whenever the encoded block
// exceeds maxFrameSize (RFC 7540 Section 6.10). endStream marks the HEADERS
// frame END_STREAM; END_HEADERS is always set on the final fragment.
func EncodeHeaders(enc *HpackAdapter, streamID uint32, fields []hpack.HeaderField, endStream bool, maxFrameSize uint32, stats *OutgoingStats, out *bytes.Buffer) error {
	block, err := enc.EncodeHeaderFields(fields)
	if err != nil {
		return err
	}
	if stats != nil {
		stats.HeaderBytes += uint64(len(block))
	}

	first := true
	for {
		frag := block
		if uint32(len(frag)) > maxFrameSize {
			frag = block[:maxFrameSize]
		}
		block = block[len(frag):]

		var typ FrameType
		var flags Flags
		if first {
			typ = FrameHeaders
			if endStream {
				flags |= FlagHeadersEndStream
			}
		} else {
			typ = FrameContinuation
		}
		if len(block) == 0 {
			flags |= FlagHeadersEndHeaders
		}
		FrameHeader{Length: uint32(len(frag)), Type: typ, Flags: flags, StreamID: streamID}.appendTo(out)
		out.Write(frag)
		stats.addFraming(FrameHeaderLen)

		first = false
		if len(block) == 0 {
			return nil
		}
	}
}

// EncodeWindowUpdate appends a WINDOW_UPDATE frame to out. A streamID of zero
// grants connection-level credit.
func EncodeWindowUpdate(streamID uint32, increment uint32, stats *OutgoingStats, out *bytes.Buffer) {
	FrameHeader{Length: 4, Type: FrameWindowUpdate, StreamID: streamID}.appendTo(out)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], increment&0x7FFFFFFF)
	out.Write(payload[:])
	stats.addFraming(FrameHeaderLen + 4)
}

// Setting is one SETTINGS parameter carried in a SETTINGS frame.
type Setting struct {
	ID    SettingID
	Value uint32
}

// EncodeSettings appends one SETTINGS frame carrying settings to out. An
// empty slice yields an empty (but still valid) SETTINGS frame.
func EncodeSettings(settings []Setting, out *bytes.Buffer) {
	FrameHeader{Length: uint32(6 * len(settings)), Type: FrameSettings, StreamID: 0}.appendTo(out)
	var entry [6]byte
	for _, s := range settings {
		binary.BigEndian.PutUint16(entry[0:2], uint16(s.ID))
		binary.BigEndian.PutUint32(entry[2:6], s.Value)
		out.Write(entry[:])
	}
}

// EncodeSettingsAck appends a SETTINGS frame with the ACK flag set.
func EncodeSettingsAck(out *bytes.Buffer) {
	FrameHeader{Length: 0, Type: FrameSettings, Flags: FlagSettingsAck, StreamID: 0}.appendTo(out)
}

// EncodePing appends a PING frame with the given opaque data.
func EncodePing(ack bool, data [8]byte, out *bytes.Buffer) {
	var flags Flags
	if ack {
		flags |= FlagPingAck
	}
	FrameHeader{Length: 8, Type: FramePing, Flags: flags, StreamID: 0}.appendTo(out)
	out.Write(data[:])
}

// EncodeRSTStream appends an RST_STREAM frame for streamID carrying code.
func EncodeRSTStream(streamID uint32, code ErrorCode, stats *OutgoingStats, out *bytes.Buffer) {
	FrameHeader{Length: 4, Type: FrameRSTStream, StreamID: streamID}.appendTo(out)
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], uint32(code))
	out.Write(payload[:])
	stats.addFraming(FrameHeaderLen + 4)
}
