package http2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FrameType represents an HTTP/2 frame type.
type FrameType uint8

const (
	// FrameData is for DATA frames (0x0).
	FrameData FrameType = 0x0
	// FrameHeaders is for HEADERS frames (0x1).
	FrameHeaders FrameType = 0x1
	// FramePriority is for PRIORITY frames (0x2).
	FramePriority FrameType = 0x2
	// FrameRSTStream is for RST_STREAM frames (0x3).
	FrameRSTStream FrameType = 0x3
	// FrameSettings is for SETTINGS frames (0x4).
	FrameSettings FrameType = 0x4
	// FramePushPromise is for PUSH_PROMISE frames (0x5).
	FramePushPromise FrameType = 0x5
	// FramePing is for PING frames (0x6).
	FramePing FrameType = 0x6
	// FrameGoAway is for GOAWAY frames (0x7).
	FrameGoAway FrameType = 0x7
	// FrameWindowUpdate is for WINDOW_UPDATE frames (0x8).
	FrameWindowUpdate FrameType = 0x8
	// FrameContinuation is for CONTINUATION frames (0x9).
	FrameContinuation FrameType = 0x9
)

// String returns the string representation of the FrameType.
func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRSTStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN_FRAME_TYPE_%d", uint8(t))
	}
}

// Flags represents flags for an HTTP/2 frame.
type Flags uint8

// Frame header flags
const (
	// FlagDataEndStream indicates that this DATA frame is the last from the sender.
	FlagDataEndStream Flags = 0x1

	// FlagHeadersEndStream indicates that this HEADERS frame is the last from the sender.
	FlagHeadersEndStream Flags = 0x1
	// FlagHeadersEndHeaders indicates that this HEADERS frame contains an entire block of header fields.
	FlagHeadersEndHeaders Flags = 0x4

	// FlagSettingsAck indicates that this SETTINGS frame acknowledges receipt and
	// application of the peer's SETTINGS frame.
	FlagSettingsAck Flags = 0x1

	// FlagPingAck indicates that this PING frame is an acknowledgment.
	FlagPingAck Flags = 0x1

	// FlagContinuationEndHeaders indicates that this CONTINUATION frame contains
	// the end of a header block.
	FlagContinuationEndHeaders Flags = 0x4
)

// SettingID represents a SETTINGS parameter identifier.
type SettingID uint16

// SETTINGS parameters from RFC 7540 Section 6.5.2.
const (
	// SettingHeaderTableSize (0x1): Initial size of the HPACK header table.
	SettingHeaderTableSize SettingID = 0x1
	// SettingEnablePush (0x2): Whether server push is enabled.
	SettingEnablePush SettingID = 0x2
	// SettingMaxConcurrentStreams (0x3): Maximum number of concurrent streams.
	SettingMaxConcurrentStreams SettingID = 0x3
	// SettingInitialWindowSize (0x4): Initial window size for flow control.
	SettingInitialWindowSize SettingID = 0x4
	// SettingMaxFrameSize (0x5): Maximum size of a frame payload.
	SettingMaxFrameSize SettingID = 0x5
	// SettingMaxHeaderListSize (0x6): Maximum size of header list.
	SettingMaxHeaderListSize SettingID = 0x6

	// NumSettingIDs bounds the defined SETTINGS identifier space; usable as the
	// size of a table indexed directly by SettingID.
	NumSettingIDs = 7
)

// String returns the string representation of the SettingID.
func (s SettingID) String() string {
	switch s {
	case SettingHeaderTableSize:
		return "SETTINGS_HEADER_TABLE_SIZE"
	case SettingEnablePush:
		return "SETTINGS_ENABLE_PUSH"
	case SettingMaxConcurrentStreams:
		return "SETTINGS_MAX_CONCURRENT_STREAMS"
	case SettingInitialWindowSize:
		return "SETTINGS_INITIAL_WINDOW_SIZE"
	case SettingMaxFrameSize:
		return "SETTINGS_MAX_FRAME_SIZE"
	case SettingMaxHeaderListSize:
		return "SETTINGS_MAX_HEADER_LIST_SIZE"
	default:
		return fmt.Sprintf("UNKNOWN_SETTING_ID_%d", uint16(s))
	}
}

const (
	// DefaultMaxFrameSize is the minimum (and initial) SETTINGS_MAX_FRAME_SIZE.
	// "This setting can have any value between 2^14 (16,384) and 2^24-1
	// (16,777,215) octets, inclusive."
	DefaultMaxFrameSize uint32 = 16384 // 2^14
	MaxAllowedFrameSize uint32 = (1 << 24) - 1
	MinAllowedFrameSize uint32 = 16384

	// FrameHeaderLen is the length of the HTTP/2 frame header.
	FrameHeaderLen = 9

	// DefaultInitialWindowSize is the default initial window size for flow control.
	DefaultInitialWindowSize uint32 = 65535 // 2^16 - 1

	// DefaultHeaderTableSize is the default SETTINGS_HEADER_TABLE_SIZE.
	DefaultHeaderTableSize uint32 = 4096

	// MaxWindowSize is the maximum value a flow control window can reach
	// (2^31 - 1). As per RFC 7540, 6.9.1.
	MaxWindowSize = (1 << 31) - 1
)

// FrameHeader represents the 9-octet header common to all frames.
type FrameHeader struct {
	Length   uint32    // 24 bits
	Type     FrameType // 8 bits
	Flags    Flags     // 8 bits
	StreamID uint32    // 31 bits (R is 1 bit, masked out)
}

// ReadFrameHeader reads a frame header from r.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var raw [FrameHeaderLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return FrameHeader{}, err
	}
	return FrameHeader{
		Length:   uint32(raw[0])<<16 | uint32(raw[1])<<8 | uint32(raw[2]),
		Type:     FrameType(raw[3]),
		Flags:    Flags(raw[4]),
		StreamID: binary.BigEndian.Uint32(raw[5:]) & 0x7FFFFFFF, // Mask out R bit
	}, nil
}

// appendTo serializes the frame header into out.
func (fh FrameHeader) appendTo(out *bytes.Buffer) {
	var raw [FrameHeaderLen]byte
	raw[0] = byte(fh.Length >> 16 & 0xFF)
	raw[1] = byte(fh.Length >> 8 & 0xFF)
	raw[2] = byte(fh.Length & 0xFF)
	raw[3] = byte(fh.Type)
	raw[4] = byte(fh.Flags)
	binary.BigEndian.PutUint32(raw[5:9], fh.StreamID&0x7FFFFFFF) // Ensure R bit is 0
	out.Write(raw[:])
}
