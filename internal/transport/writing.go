package transport

import (
	"example.com/h2mux/internal/http2"
	"example.com/h2mux/internal/logger"
)

// writeCallback is a pooled completion record: done resolves once the
// stream's cumulative finalized bytes reach callAtByte.
type writeCallback struct {
	callAtByte uint64
	done       func(error)
	next       *writeCallback
}

// BeginWrite runs one scheduling pass: it emits any pending SETTINGS delta,
// flushes queued control frames, promotes transport-stalled streams when
// credit is available, drains the writable queue in FIFO order making
// per-stream send decisions, and advertises accrued connection-level read
// credit. It reports whether the output buffer holds frames; if so, the
// driver must transmit the buffer and then call EndWrite with the outcome.
func (t *Transport) BeginWrite() bool {
	if t.dirtySettings && !t.sentLocalSettings {
		http2.EncodeSettings(t.settingsDelta(), &t.outbuf)
		t.settings[settingsSent] = t.settings[settingsLocal]
		t.forceSendSettings = 0
		t.dirtySettings = false
		t.sentLocalSettings = true
	}

	// Control frames queued outside the pass ride ahead of stream frames.
	t.qbuf.WriteTo(&t.outbuf) //nolint:errcheck // bytes.Buffer cannot fail
	if t.qbuf.Len() != 0 {
		panic("transport: control frame buffer not empty after flush")
	}

	t.henc.SetMaxEncoderDynamicTableSize(t.peerSetting(http2.SettingHeaderTableSize))

	if t.sendWindow > 0 {
		for s := t.popStalled(); s != nil; s = t.popStalled() {
			t.enqueueWritable(s)
		}
	}

	for s := t.popWritable(); s != nil; s = t.popWritable() {
		t.writeStream(s)
	}

	if t.announceIncoming > 0 {
		announced := t.announceIncoming
		if announced > http2.MaxWindowSize {
			announced = http2.MaxWindowSize
		}
		http2.EncodeWindowUpdate(0, uint32(announced), nil, &t.outbuf)
		t.debitAnnounceIncoming(announced)
	}

	return t.outbuf.Len() > 0
}

// writeStream applies the per-stream send decision to a stream popped from
// the writable queue, then classifies it: into the writing queue when it
// produced output, into stalled-by-transport when only connection credit is
// missing, or out of all queues otherwise.
func (t *Transport) writeStream(s *Stream) {
	sentInitialMetadata := s.sentInitialMetadata
	nowWriting := false
	stalled := false

	if t.log.DebugEnabled() {
		t.log.Debug("write pass stream", logger.LogFields{
			"stream_id":         s.id,
			"initial_md_sent":   sentInitialMetadata,
			"initial_md_queued": s.sendInitialMetadata != nil,
			"announce":          s.announceWindow,
			"buffered":          s.flowControlledBuffer.Len(),
		})
	}

	// Initial metadata always precedes any data bytes of the stream.
	if !sentInitialMetadata && s.sendInitialMetadata != nil {
		if err := http2.EncodeHeaders(t.henc, s.id, s.sendInitialMetadata.Fields, false,
			t.ackedSetting(http2.SettingMaxFrameSize), &s.stats, &t.outbuf); err != nil {
			panic("transport: encoding initial metadata: " + err.Error())
		}
		s.sendInitialMetadata = nil
		s.sentInitialMetadata = true
		sentInitialMetadata = true
		nowWriting = true
	}

	// Advertise accrued stream-level read credit.
	if s.announceWindow > 0 {
		announce := s.announceWindow
		if announce > http2.MaxWindowSize {
			announce = http2.MaxWindowSize
		}
		http2.EncodeWindowUpdate(s.id, uint32(announce), &s.stats, &t.outbuf)
		s.debitAnnounceWindow(announce)
	}

	if sentInitialMetadata {
		if s.flowControlledBuffer.Len() > 0 {
			// Sendable bytes are bounded by the peer's max frame size and
			// both levels of flow control.
			maxOutgoing := int64(t.ackedSetting(http2.SettingMaxFrameSize))
			if s.sendWindow < maxOutgoing {
				maxOutgoing = s.sendWindow
			}
			if t.sendWindow < maxOutgoing {
				maxOutgoing = t.sendWindow
			}
			if maxOutgoing > 0 {
				sendBytes := int64(s.flowControlledBuffer.Len())
				if maxOutgoing < sendBytes {
					sendBytes = maxOutgoing
				}
				isLastDataFrame := !s.moreDataExpected && sendBytes == int64(s.flowControlledBuffer.Len())
				// Empty trailing metadata can ride on the final DATA frame
				// as END_STREAM instead of costing a separate HEADERS frame.
				isLastFrame := isLastDataFrame && s.sendTrailingMetadata != nil && s.sendTrailingMetadata.IsEmpty()
				http2.EncodeData(s.id, &s.flowControlledBuffer, uint32(sendBytes), isLastFrame, &s.stats, &t.outbuf)
				s.debitSendWindow(sendBytes)
				t.debitSendWindow(sendBytes)
				if isLastFrame {
					s.sendTrailingMetadata = nil
					s.sentTrailingMetadata = true
					if !t.isClient && !s.readClosed {
						// Force full closure rather than leaving the stream
						// half open on the peer's side.
						http2.EncodeRSTStream(s.id, http2.ErrCodeNoError, &s.stats, &t.outbuf)
					}
				}
				s.sendingBytes += uint64(sendBytes)
				nowWriting = true
				if s.flowControlledBuffer.Len() > 0 {
					s.after = afterWriteWritable
				}
			} else if t.sendWindow == 0 {
				stalled = true
			}
		}
		if s.sendTrailingMetadata != nil && !s.moreDataExpected && s.flowControlledBuffer.Len() == 0 {
			// Terminal write. An empty batch closes with a zero-length
			// END_STREAM DATA frame, cheaper than an empty HEADERS frame.
			if s.sendTrailingMetadata.IsEmpty() {
				http2.EncodeData(s.id, &s.flowControlledBuffer, 0, true, &s.stats, &t.outbuf)
			} else {
				if err := http2.EncodeHeaders(t.henc, s.id, s.sendTrailingMetadata.Fields, true,
					t.ackedSetting(http2.SettingMaxFrameSize), &s.stats, &t.outbuf); err != nil {
					panic("transport: encoding trailing metadata: " + err.Error())
				}
			}
			s.sendTrailingMetadata = nil
			s.sentTrailingMetadata = true
			if !t.isClient && !s.readClosed {
				http2.EncodeRSTStream(s.id, http2.ErrCodeNoError, &s.stats, &t.outbuf)
			}
			nowWriting = true
		}
	}

	switch {
	case nowWriting:
		if stalled {
			s.after = afterWriteStalled
		}
		t.enqueueWriting(s)
	case stalled:
		t.enqueueStalled(s)
	default:
		// The stream produced nothing and leaves every scheduling queue.
	}
}

// EndWrite finalizes one pass after the physical transmission of the output
// buffer completed with the given outcome (nil on success). For every stream
// written this pass it resolves the metadata-sent notifications, runs the
// byte-threshold completion tracker, closes the write side after a terminal
// write, and re-queues partially drained or transport-stalled streams. The
// output buffer is reset for the next pass.
func (t *Transport) EndWrite(err error) {
	for s := t.popWriting(); s != nil; s = t.popWriting() {
		if s.sentInitialMetadata && s.onInitialMetadataSent != nil {
			done := s.onInitialMetadataSent
			s.onInitialMetadataSent = nil
			done(err)
		}
		if s.sendingBytes != 0 {
			t.finishWriteCallbacks(s, s.sendingBytes, err)
			s.sendingBytes = 0
		}
		if s.sentTrailingMetadata && !s.writeClosed {
			if s.onTrailingMetadataSent != nil {
				done := s.onTrailingMetadataSent
				s.onTrailingMetadataSent = nil
				done(err)
			}
			t.markWriteClosed(s, !t.isClient && !s.readClosed, err)
		}
		switch s.after {
		case afterWriteWritable:
			s.after = afterWriteIdle
			t.enqueueWritable(s)
		case afterWriteStalled:
			s.after = afterWriteIdle
			t.enqueueStalled(s)
		}
	}
	t.outbuf.Reset()
}

// finishWriteCallbacks advances the stream's finalized byte total and
// resolves every pending callback whose threshold has been reached, with the
// pass's outcome. Unreached callbacks are relinked for a later pass; fired
// records return to the pool. Firing order among simultaneously due
// callbacks is unspecified.
func (t *Transport) finishWriteCallbacks(s *Stream, sent uint64, err error) {
	s.flowControlledBytesWritten += sent
	cb := s.writeCallbacks
	s.writeCallbacks = nil
	for cb != nil {
		next := cb.next
		if cb.callAtByte <= s.flowControlledBytesWritten {
			done := cb.done
			*cb = writeCallback{}
			t.cbPool.Put(cb)
			done(err)
		} else {
			cb.next = s.writeCallbacks
			s.writeCallbacks = cb
		}
		cb = next
	}
}
