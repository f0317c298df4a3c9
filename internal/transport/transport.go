package transport

import (
	"bytes"
	"sync"

	"example.com/h2mux/internal/config"
	"example.com/h2mux/internal/http2"
	"example.com/h2mux/internal/logger"
)

// settingsPhase indexes the four lifecycles a settings table goes through:
// what we last put on the wire (sent), what the peer has acknowledged
// (acked), what the peer announced to us (peer), and what local code wants
// announced next (local).
type settingsPhase int

const (
	settingsSent settingsPhase = iota
	settingsAcked
	settingsPeer
	settingsLocal
	numSettingsPhases
)

// Transport holds the write-side state shared by all streams of one
// connection. The scheduler (BeginWrite) and finalizer (EndWrite) assume
// exclusive access for the duration of a pass; serializing passes against
// inbound processing is the caller's responsibility. No method blocks.
type Transport struct {
	log      *logger.Logger
	isClient bool

	// Connection-level send credit, and read credit accrued locally but not
	// yet advertised to the peer.
	sendWindow       int64
	announceIncoming int64

	settings          [numSettingsPhases][http2.NumSettingIDs]uint32
	dirtySettings     bool
	sentLocalSettings bool
	forceSendSettings uint32 // Bitmask by SettingID

	// outbuf accumulates one pass's frames; qbuf holds control frames queued
	// outside the pass and is drained into outbuf at the start of each pass.
	outbuf bytes.Buffer
	qbuf   bytes.Buffer

	henc *http2.HpackAdapter

	// Scheduling queues; membership is tracked by Stream.loc.
	writable []*Stream
	stalled  []*Stream
	writing  []*Stream

	cbPool sync.Pool
}

// New creates a Transport. cfg, when non-nil, overrides the locally-announced
// settings; any override marks the local settings dirty so the first write
// pass emits a SETTINGS frame. lg must be non-nil (use logger.NewNop to
// silence).
func New(cfg *config.TransportConfig, lg *logger.Logger, isClient bool) *Transport {
	t := &Transport{
		log:        lg,
		isClient:   isClient,
		sendWindow: int64(http2.DefaultInitialWindowSize),
		henc:       http2.NewHpackAdapter(http2.DefaultHeaderTableSize),
	}
	t.cbPool.New = func() interface{} { return new(writeCallback) }

	for phase := settingsPhase(0); phase < numSettingsPhases; phase++ {
		t.settings[phase] = [http2.NumSettingIDs]uint32{
			http2.SettingHeaderTableSize:      http2.DefaultHeaderTableSize,
			http2.SettingEnablePush:           1,
			http2.SettingMaxConcurrentStreams: 0xffffffff,
			http2.SettingInitialWindowSize:    http2.DefaultInitialWindowSize,
			http2.SettingMaxFrameSize:         http2.DefaultMaxFrameSize,
			http2.SettingMaxHeaderListSize:    0xffffffff,
		}
	}

	if cfg != nil {
		if cfg.HeaderTableSize != nil {
			t.SetLocalSetting(http2.SettingHeaderTableSize, *cfg.HeaderTableSize)
		}
		if cfg.InitialWindowSize != nil {
			t.SetLocalSetting(http2.SettingInitialWindowSize, *cfg.InitialWindowSize)
		}
		if cfg.MaxFrameSize != nil {
			t.SetLocalSetting(http2.SettingMaxFrameSize, *cfg.MaxFrameSize)
		}
		if cfg.MaxConcurrentStreams != nil {
			t.SetLocalSetting(http2.SettingMaxConcurrentStreams, *cfg.MaxConcurrentStreams)
		}
		if cfg.MaxHeaderListSize != nil {
			t.SetLocalSetting(http2.SettingMaxHeaderListSize, *cfg.MaxHeaderListSize)
		}
	}
	return t
}

// SendWindow returns the connection-level send credit still available.
func (t *Transport) SendWindow() int64 { return t.sendWindow }

// Outbuf exposes the accumulated output buffer between BeginWrite and
// EndWrite; the driver writes its contents to the connection.
func (t *Transport) Outbuf() *bytes.Buffer { return &t.outbuf }

// SetLocalSetting updates the locally-announced value for id, marking the
// settings dirty when the value changes.
func (t *Transport) SetLocalSetting(id http2.SettingID, value uint32) {
	if t.settings[settingsLocal][id] == value {
		return
	}
	t.settings[settingsLocal][id] = value
	t.dirtySettings = true
}

// ForceSendSetting marks id for inclusion in the next SETTINGS frame even if
// its value is unchanged.
func (t *Transport) ForceSendSetting(id http2.SettingID) {
	t.forceSendSettings |= 1 << uint(id)
	t.dirtySettings = true
}

// AckLocalSettings records the peer's SETTINGS ACK for our last emission:
// the sent table becomes acked and a subsequent local change may be emitted.
func (t *Transport) AckLocalSettings() {
	t.settings[settingsAcked] = t.settings[settingsSent]
	t.sentLocalSettings = false
}

// ApplyPeerSetting records a settings value announced by the peer. Stream
// send-window adjustment on SETTINGS_INITIAL_WINDOW_SIZE changes is the
// inbound processor's concern, as is validation.
func (t *Transport) ApplyPeerSetting(id http2.SettingID, value uint32) {
	if int(id) >= http2.NumSettingIDs {
		return
	}
	t.settings[settingsPeer][id] = value
}

func (t *Transport) localSetting(id http2.SettingID) uint32 { return t.settings[settingsLocal][id] }
func (t *Transport) ackedSetting(id http2.SettingID) uint32 { return t.settings[settingsAcked][id] }
func (t *Transport) peerSetting(id http2.SettingID) uint32  { return t.settings[settingsPeer][id] }

// settingsDelta collects the settings to carry in the next SETTINGS frame:
// every value that differs from the sent table, plus any force-marked ones.
func (t *Transport) settingsDelta() []http2.Setting {
	var delta []http2.Setting
	for id := http2.SettingID(1); id < http2.NumSettingIDs; id++ {
		if t.settings[settingsLocal][id] != t.settings[settingsSent][id] || t.forceSendSettings&(1<<uint(id)) != 0 {
			delta = append(delta, http2.Setting{ID: id, Value: t.settings[settingsLocal][id]})
		}
	}
	return delta
}

// QueueSettingsAck queues a SETTINGS ACK control frame for the next pass.
func (t *Transport) QueueSettingsAck() {
	http2.EncodeSettingsAck(&t.qbuf)
}

// QueuePing queues a PING control frame for the next pass.
func (t *Transport) QueuePing(ack bool, data [8]byte) {
	http2.EncodePing(ack, data, &t.qbuf)
}
