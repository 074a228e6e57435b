package protocol

import (
	"fmt"
	"strings"
)

// StatusLen is the number of flag characters in an acknowledgment.
const StatusLen = 6

// Status is the decoded acknowledgment. Bit 3 has no confirmed meaning in
// the firmware and is kept as Reserved.
type Status struct {
	GrabberOpen bool `json:"grabber_open"`
	Grabbing    bool `json:"grabbing"`
	Moving      bool `json:"moving"`
	Reserved    bool `json:"reserved"`
	Kicking     bool `json:"kicking"`
	BallGrabbed bool `json:"ball_grabbed"`
}

// ParseStatus decodes a line of exactly six '0'/'1' characters.
func ParseStatus(line string) (Status, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) != StatusLen {
		return Status{}, fmt.Errorf("%q has %d flags, want %d: %w", line, len(line), StatusLen, ErrMalformedStatus)
	}
	var bits [StatusLen]bool
	for i := 0; i < StatusLen; i++ {
		switch line[i] {
		case '1':
			bits[i] = true
		case '0':
		default:
			return Status{}, fmt.Errorf("%q flag %d: %w", line, i, ErrMalformedStatus)
		}
	}
	return Status{
		GrabberOpen: bits[0],
		Grabbing:    bits[1],
		Moving:      bits[2],
		Reserved:    bits[3],
		Kicking:     bits[4],
		BallGrabbed: bits[5],
	}, nil
}

// String is the wire form without the trailing newline.
func (s Status) String() string {
	flags := [StatusLen]bool{s.GrabberOpen, s.Grabbing, s.Moving, s.Reserved, s.Kicking, s.BallGrabbed}
	var b strings.Builder
	b.Grow(StatusLen)
	for _, f := range flags {
		if f {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
