package congestion

// NewBiaz always fails: Biaz is reserved in the reference implementation
// but was never finished (it only works well without Weber sampling, or
// with adaptations for it that were never written).
func NewBiaz() (Detector, error) {
	return nil, ErrNotImplemented
}
