package spool

import "errors"

// Sentinel kinds for spool errors.
var (
	ErrTooLarge = errors.New("upload exceeds size limit")
	ErrNoDir    = errors.New("spool directory unavailable")
)
