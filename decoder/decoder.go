// Package decoder models the FFmpeg-based stream receiver's callback and
// control contract (§6 GLOSSARY) as Go interfaces. The receiver itself is
// explicitly out of scope (spec.md §1 Non-goals); this package only
// expresses the boundary this system sits behind.
package decoder

// Status is the per-source connection status a decoder reports through
// Callbacks.OnStatus.
type Status int

const (
	StatusOK Status = iota
	StatusNotStreaming
	StatusNotFound
	StatusConnectionError
	StatusDecodeError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotStreaming:
		return "not_streaming"
	case StatusNotFound:
		return "not_found"
	case StatusConnectionError:
		return "connection_error"
	case StatusDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Callbacks is the decoder→client contract (§6 "Decoder callback contract
// (consumed)"). OnFrame's data is owned by the decoder; implementations
// must copy it before returning (§9 "Frame data ownership").
type Callbacks interface {
	// OnFrame delivers one decoded RGB8 interleaved frame of exactly
	// 3*width*height bytes for sourceID at presentation timestamp pts.
	OnFrame(sourceID string, data []byte, width, height int, pts uint64)
	// OnStopped reports that sourceID's stream ended.
	OnStopped(sourceID string)
	// OnName reports the decoder-assigned display name for sourceID.
	OnName(sourceID string, name string)
	// OnStatus reports a connection-status transition for sourceID.
	OnStatus(sourceID string, status Status)
}

// Controller is the client→decoder contract (§6 "Decoder control contract
// (exposed)").
type Controller interface {
	// InitSources registers the set of source ids the decoder should
	// stream, at the given log verbosity.
	InitSources(ids []string, logLevel int) error
	// PostResults hands a detection-payload JSON document (the same shape
	// as the §4.6 BBOX envelope's inner data) back to the decoder, e.g.
	// for on-screen overlay.
	PostResults(sourceID string, resultJSON []byte) error
}

// NopController discards every call; used when no real decoder is wired
// (the decoder itself sits outside this system's boundary).
type NopController struct{}

func (NopController) InitSources(ids []string, logLevel int) error        { return nil }
func (NopController) PostResults(sourceID string, resultJSON []byte) error { return nil }
