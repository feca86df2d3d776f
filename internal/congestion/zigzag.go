package congestion

// ZigZag flags congestion whenever the current rott exceeds the running
// average by more than one standard deviation; it carries no state of its
// own between calls.
type ZigZag struct{}

func (ZigZag) Classify(rott uint32, avgRott, stdRott float64, _ uint32) State {
	if float64(rott) > avgRott+stdRott {
		return Congested
	}
	return NotCongested
}
