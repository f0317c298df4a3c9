package transport

import (
	"fmt"

	"example.com/h2mux/internal/http2"
	"example.com/h2mux/internal/logger"
)

// The scheduler is the only debitor of send windows; credit arrives from the
// inbound side (peer WINDOW_UPDATE frames and local read consumption). A
// debit that would drive a window negative is a scheduling bug, not a
// runtime condition, and panics.

func (t *Transport) debitSendWindow(n int64) {
	if n > t.sendWindow {
		panic(fmt.Sprintf("transport: connection send window underflow: debit %d, available %d", n, t.sendWindow))
	}
	t.sendWindow -= n
	if t.log.DebugEnabled() {
		t.log.Debug("flow debit", logger.LogFields{"window": "transport_send", "debit": n, "remaining": t.sendWindow})
	}
}

func (s *Stream) debitSendWindow(n int64) {
	if n > s.sendWindow {
		panic(fmt.Sprintf("transport: stream %d send window underflow: debit %d, available %d", s.id, n, s.sendWindow))
	}
	s.sendWindow -= n
	if s.t.log.DebugEnabled() {
		s.t.log.Debug("flow debit", logger.LogFields{"window": "stream_send", "stream_id": s.id, "debit": n, "remaining": s.sendWindow})
	}
}

func (t *Transport) debitAnnounceIncoming(n int64) {
	if n > t.announceIncoming {
		panic(fmt.Sprintf("transport: announce accumulator underflow: debit %d, available %d", n, t.announceIncoming))
	}
	t.announceIncoming -= n
}

func (s *Stream) debitAnnounceWindow(n int64) {
	if n > s.announceWindow {
		panic(fmt.Sprintf("transport: stream %d announce underflow: debit %d, available %d", s.id, n, s.announceWindow))
	}
	s.announceWindow -= n
}

// HandleWindowUpdateFromPeer grants connection-level send credit from a peer
// WINDOW_UPDATE. Stalled streams are promoted on the next write pass. Errors
// on window overflow per RFC 7540 Section 6.9.1.
func (t *Transport) HandleWindowUpdateFromPeer(increment uint32) error {
	next := t.sendWindow + int64(increment)
	if next > http2.MaxWindowSize {
		return http2.NewConnectionError(http2.ErrCodeFlowControlError,
			fmt.Sprintf("connection send window would overflow: %d + %d > %d", t.sendWindow, increment, int64(http2.MaxWindowSize)))
	}
	t.sendWindow = next
	return nil
}

// HandleWindowUpdateFromPeer grants stream-level send credit from a peer
// WINDOW_UPDATE, rescheduling the stream if it has bytes waiting. A zero
// increment is a protocol error on a stream (RFC 7540 Section 6.9).
func (s *Stream) HandleWindowUpdateFromPeer(increment uint32) error {
	if increment == 0 {
		return http2.NewStreamError(s.id, http2.ErrCodeProtocolError, "WINDOW_UPDATE increment cannot be 0 for a stream")
	}
	next := s.sendWindow + int64(increment)
	if next > http2.MaxWindowSize {
		return http2.NewStreamError(s.id, http2.ErrCodeFlowControlError,
			fmt.Sprintf("stream send window would overflow: %d + %d > %d", s.sendWindow, increment, int64(http2.MaxWindowSize)))
	}
	s.sendWindow = next
	if s.flowControlledBuffer.Len() > 0 {
		s.t.becomeWritable(s)
	}
	return nil
}

// AnnounceIncoming accrues connection-level read credit to advertise; the
// next write pass emits it as one WINDOW_UPDATE on stream zero.
func (t *Transport) AnnounceIncoming(n uint32) {
	t.announceIncoming += int64(n)
}

// AnnounceRead accrues stream-level read credit to advertise and schedules
// the stream so the WINDOW_UPDATE goes out with the next pass.
func (s *Stream) AnnounceRead(n uint32) {
	s.announceWindow += int64(n)
	s.t.becomeWritable(s)
}
