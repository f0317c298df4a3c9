package transport

import (
	"bytes"
	"fmt"

	"golang.org/x/net/http2/hpack"

	"example.com/h2mux/internal/http2"
)

// MetadataBatch is a one-shot set of header fields queued on a stream:
// initial metadata becomes the stream's opening HEADERS frame, trailing
// metadata its terminal frame. A batch with no fields is still meaningful —
// empty trailing metadata lets the stream close on a DATA frame instead of
// a HEADERS frame.
type MetadataBatch struct {
	Fields []hpack.HeaderField
}

// IsEmpty reports whether the batch carries no actual fields.
func (b *MetadataBatch) IsEmpty() bool { return len(b.Fields) == 0 }

// Stream holds the write-side state of one logical exchange multiplexed on a
// Transport. Stream creation, inbound processing, and destruction belong to
// the surrounding connection logic; the scheduler only observes and mutates
// the fields below under the transport's single-writer discipline.
type Stream struct {
	t  *Transport
	id uint32

	// Flow control: how much the peer allows us to send on this stream, and
	// how much read credit we have accrued but not yet advertised.
	sendWindow     int64
	announceWindow int64

	// Outbound data awaiting transmission. moreDataExpected marks the buffer
	// as still being fed by the producer, so draining it does not end the
	// stream.
	flowControlledBuffer bytes.Buffer
	moreDataExpected     bool

	// One-shot metadata batches; nil once sent (or never queued).
	sendInitialMetadata  *MetadataBatch
	sendTrailingMetadata *MetadataBatch
	sentInitialMetadata  bool
	sentTrailingMetadata bool

	// Completion notification closures, resolved by the write finalizer.
	onInitialMetadataSent  func(error)
	onTrailingMetadataSent func(error)

	// onWriteClosed is the external stream-lifecycle hook, invoked once when
	// the write side transitions to closed. forcedByReset reports that the
	// closure also reset the peer's half via RST_STREAM.
	onWriteClosed func(forcedByReset bool, err error)

	readClosed  bool
	writeClosed bool

	// Byte-granular completion tracking: total flow-controlled bytes whose
	// transmission has been finalized, bytes in flight for the current pass,
	// and the pending callback list.
	flowControlledBytesWritten uint64
	sendingBytes               uint64
	writeCallbacks             *writeCallback

	stats http2.OutgoingStats

	loc   writeLoc
	after afterWrite
}

// NewStream creates the write-side state for stream id. The stream's send
// window starts at the peer's announced SETTINGS_INITIAL_WINDOW_SIZE.
func (t *Transport) NewStream(id uint32) *Stream {
	return &Stream{
		t:          t,
		id:         id,
		sendWindow: int64(t.peerSetting(http2.SettingInitialWindowSize)),
	}
}

// ID returns the stream's identifier.
func (s *Stream) ID() uint32 { return s.id }

// Stats returns a copy of the stream's outgoing byte counters.
func (s *Stream) Stats() http2.OutgoingStats { return s.stats }

// SendWindow returns the stream-level send credit still available.
func (s *Stream) SendWindow() int64 { return s.sendWindow }

// BufferedBytes returns the flow-controlled bytes still awaiting
// transmission.
func (s *Stream) BufferedBytes() int { return s.flowControlledBuffer.Len() }

// WriteClosed reports whether the write side has closed.
func (s *Stream) WriteClosed() bool { return s.writeClosed }

// OnWriteClosed installs the stream-lifecycle hook invoked when the write
// side closes.
func (s *Stream) OnWriteClosed(fn func(forcedByReset bool, err error)) {
	s.onWriteClosed = fn
}

// QueueInitialMetadata queues the stream's opening header batch and schedules
// the stream. onSent, if non-nil, resolves once the batch has actually been
// transmitted.
func (s *Stream) QueueInitialMetadata(batch *MetadataBatch, onSent func(error)) error {
	if s.sentInitialMetadata || s.sendInitialMetadata != nil {
		return fmt.Errorf("transport: stream %d: initial metadata already queued or sent", s.id)
	}
	if s.writeClosed {
		return fmt.Errorf("transport: stream %d: write side closed", s.id)
	}
	if batch == nil {
		batch = &MetadataBatch{}
	}
	s.sendInitialMetadata = batch
	s.onInitialMetadataSent = onSent
	s.t.becomeWritable(s)
	return nil
}

// QueueData appends p to the stream's outbound buffer and schedules the
// stream. final marks the buffer as complete: once drained, no further data
// will arrive and trailing metadata (if queued) may be sent.
func (s *Stream) QueueData(p []byte, final bool) error {
	if s.writeClosed {
		return fmt.Errorf("transport: stream %d: write side closed", s.id)
	}
	if s.sentTrailingMetadata {
		return fmt.Errorf("transport: stream %d: data after trailing metadata", s.id)
	}
	s.flowControlledBuffer.Write(p)
	s.moreDataExpected = !final
	s.t.becomeWritable(s)
	return nil
}

// QueueTrailingMetadata queues the stream's terminal header batch. An empty
// batch closes the stream with a zero-length end-of-stream DATA frame
// instead of a HEADERS frame. onSent, if non-nil, resolves once the terminal
// frame has been transmitted.
func (s *Stream) QueueTrailingMetadata(batch *MetadataBatch, onSent func(error)) error {
	if s.sentTrailingMetadata || s.sendTrailingMetadata != nil {
		return fmt.Errorf("transport: stream %d: trailing metadata already queued or sent", s.id)
	}
	if s.writeClosed {
		return fmt.Errorf("transport: stream %d: write side closed", s.id)
	}
	if batch == nil {
		batch = &MetadataBatch{}
	}
	s.sendTrailingMetadata = batch
	s.onTrailingMetadataSent = onSent
	s.t.becomeWritable(s)
	return nil
}

// NotifyOnBytesWritten registers done to resolve once the stream's cumulative
// finalized flow-controlled bytes reach threshold. The callback fires exactly
// once, with the outcome of the finalizing pass.
func (s *Stream) NotifyOnBytesWritten(threshold uint64, done func(error)) {
	cb := s.t.cbPool.Get().(*writeCallback)
	cb.callAtByte = threshold
	cb.done = done
	cb.next = s.writeCallbacks
	s.writeCallbacks = cb
}

// MarkReadClosed records that the peer half-closed its side. A stream whose
// peer already closed does not need the forcing RST_STREAM when we close our
// write side.
func (s *Stream) MarkReadClosed() {
	s.readClosed = true
}

// becomeWritable schedules s unless it is already queued somewhere or its
// write side is done.
func (t *Transport) becomeWritable(s *Stream) {
	if s.loc != writeLocIdle || s.writeClosed {
		return
	}
	t.enqueueWritable(s)
}

// markWriteClosed transitions the stream's write side to closed and reports
// the closure to the stream-lifecycle hook.
func (t *Transport) markWriteClosed(s *Stream, forcedByReset bool, err error) {
	if s.writeClosed {
		return
	}
	s.writeClosed = true
	if s.onWriteClosed != nil {
		s.onWriteClosed(forcedByReset, err)
	}
}
