package netmod

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrBind        = errors.New("netmod: bind")
	ErrConnect     = errors.New("netmod: connect")
	ErrSocketFatal = errors.New("netmod: socket fatal")
)
