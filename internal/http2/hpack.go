package http2

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/net/http2/hpack"
)

// HpackAdapter wraps golang.org/x/net/http2/hpack.Encoder and hpack.Decoder,
// managing their state and associated buffers. The write path only needs the
// encoder half; the decoder is kept for peers of this package (frame readers
// and tests) so both directions share one compression-state owner.
type HpackAdapter struct {
	encoder       *hpack.Encoder
	decoder       *hpack.Decoder
	encodeBuf     *bytes.Buffer
	decodedFields []hpack.HeaderField // Accumulated per header block, reset on FinishDecoding
	maxTableSize  uint32
}

// NewHpackAdapter creates a new HpackAdapter.
//
// initialMaxTableSize is the starting capacity for both dynamic tables: the
// encoder side is re-bounded from the peer's SETTINGS_HEADER_TABLE_SIZE on
// every write pass via SetMaxEncoderDynamicTableSize (RFC 7541 Section 4.2),
// and the decoder side reflects the table size we advertise.
func NewHpackAdapter(initialMaxTableSize uint32) *HpackAdapter {
	a := &HpackAdapter{
		encodeBuf:    new(bytes.Buffer),
		maxTableSize: initialMaxTableSize,
	}
	a.encoder = hpack.NewEncoder(a.encodeBuf)
	a.encoder.SetMaxDynamicTableSize(initialMaxTableSize)
	a.decoder = hpack.NewDecoder(initialMaxTableSize, func(hf hpack.HeaderField) {
		a.decodedFields = append(a.decodedFields, hf)
	})
	return a
}

// SetMaxEncoderDynamicTableSize updates the maximum dynamic table size the
// HPACK encoder will use. This must track the peer's advertised
// SETTINGS_HEADER_TABLE_SIZE; the encoder must not use a larger table.
func (h *HpackAdapter) SetMaxEncoderDynamicTableSize(size uint32) {
	if h.encoder != nil {
		h.encoder.SetMaxDynamicTableSize(size)
	}
}

// SetMaxDecoderDynamicTableSize updates the decoder's dynamic table bound,
// matching the SETTINGS_HEADER_TABLE_SIZE we advertise to the peer.
func (h *HpackAdapter) SetMaxDecoderDynamicTableSize(size uint32) {
	if h.decoder != nil {
		h.decoder.SetMaxDynamicTableSize(size)
		h.maxTableSize = size
	}
}

// EncodeHeaderFields encodes a list of header fields using HPACK and returns
// the encoded block. The returned slice references the adapter's internal
// buffer and is valid until the next encode call.
func (h *HpackAdapter) EncodeHeaderFields(fields []hpack.HeaderField) ([]byte, error) {
	if h.encoder == nil {
		return nil, errors.New("hpack: HpackAdapter.encoder not initialized")
	}
	h.encodeBuf.Reset()
	for _, hf := range fields {
		// RFC 7540, Section 8.1.2: empty header field names are malformed.
		if hf.Name == "" {
			return nil, fmt.Errorf("hpack: invalid header field name: name is empty (value: %q)", hf.Value)
		}
		if err := h.encoder.WriteField(hf); err != nil {
			return nil, fmt.Errorf("hpack: HpackAdapter.encoder.WriteField failed for header field %q: %w", hf.Name, err)
		}
	}
	return h.encodeBuf.Bytes(), nil
}

// DecodeFragment processes a fragment of an HPACK-encoded header block,
// accumulating decoded fields until FinishDecoding is called.
func (h *HpackAdapter) DecodeFragment(fragment []byte) error {
	if h.decoder == nil {
		return errors.New("hpack: HpackAdapter.decoder not initialized")
	}
	if _, err := h.decoder.Write(fragment); err != nil {
		return fmt.Errorf("hpack: HpackAdapter.decoder.Write failed: %w", err)
	}
	return nil
}

// FinishDecoding finalizes the current header block, returns all accumulated
// header fields, and resets the internal decoding state for the next block.
func (h *HpackAdapter) FinishDecoding() ([]hpack.HeaderField, error) {
	if h.decoder == nil {
		return nil, errors.New("hpack: HpackAdapter.decoder not initialized")
	}
	err := h.decoder.Close()
	fields := h.decodedFields
	h.decodedFields = nil
	if err != nil {
		return fields, fmt.Errorf("hpack: HpackAdapter.decoder.Close failed: %w", err)
	}
	return fields, nil
}
