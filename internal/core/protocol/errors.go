package protocol

import "errors"

var (
	// Command errors

	ErrUnknownCommand = errors.New("unknown command")
	ErrArity          = errors.New("wrong number of command arguments")
	ErrInvalidFrame   = errors.New("invalid frame")

	// Status errors

	ErrMalformedStatus = errors.New("malformed status")

	// Link errors

	ErrLinkBusy     = errors.New("link is busy")
	ErrLinkClosed   = errors.New("link is closed")
	ErrDialFailed   = errors.New("dial failed")
	ErrNoTransport  = errors.New("no transport configured")
	ErrFrameTooLong = errors.New("frame too long")
)
