package models

// FrameKind tags a decoded stream frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameKline
	FrameDepth
)

func (k FrameKind) String() string {
	switch k {
	case FrameKline:
		return "kline"
	case FrameDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// Frame is a stream message decoded once into a tagged variant.
// Only the field matching Kind is meaningful.
type Frame struct {
	Kind        FrameKind
	Stream      string
	Symbol      string
	Granularity Granularity
	Candle      Candle
	Depth       DepthSample
}
