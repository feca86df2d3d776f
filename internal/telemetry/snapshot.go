package telemetry

// Snapshot is a point-in-time view of a Network Module's adaptation
// state, broadcast to connected observers. It carries no payload
// samples — only the control-loop signals an operator or dashboard
// would want to plot.
type Snapshot struct {
	Timestamp       uint64
	K               int8
	Rott            uint32
	AvgRott         float64
	StdRott         float64
	CongestionState uint8
	FramesTx        uint64
	FramesRx        uint64
}
