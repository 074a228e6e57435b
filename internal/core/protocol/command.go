package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode is the first token of a command line.
type Opcode string

const (
	OpDrive        Opcode = "DRIVE"
	OpOpenGrabber  Opcode = "O_GRAB"
	OpCloseGrabber Opcode = "C_GRAB"
	OpKick         Opcode = "KICK"
	OpStatus       Opcode = "STATUS"
)

// Delimiter separates the opcode and its arguments on the wire.
const Delimiter = " "

var arities = map[Opcode]int{
	OpDrive:        4,
	OpOpenGrabber:  2,
	OpCloseGrabber: 2,
	OpKick:         2,
	OpStatus:       0,
}

// Arity returns how many arguments op takes.
func (op Opcode) Arity() (int, bool) {
	n, ok := arities[op]
	return n, ok
}

// Command is one request to the robot. Build it with NewCommand so the
// argument count is always checked. Seq is a local tag the link echoes back
// in the Reply; it never goes on the wire.
type Command struct {
	Op   Opcode
	Args []string
	Seq  uint64
}

func NewCommand(op Opcode, args ...string) (Command, error) {
	want, ok := op.Arity()
	if !ok {
		return Command{}, fmt.Errorf("%q: %w", op, ErrUnknownCommand)
	}
	if len(args) != want {
		return Command{}, fmt.Errorf("%s takes %d arguments, got %d: %w", op, want, len(args), ErrArity)
	}
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \r\n") {
			return Command{}, fmt.Errorf("%s argument %q: %w", op, a, ErrInvalidFrame)
		}
	}
	return Command{Op: op, Args: append([]string(nil), args...)}, nil
}

// Drive is DRIVE with integer tick counts and power percentages.
func Drive(leftTicks, rightTicks, leftPower, rightPower int) Command {
	cmd, _ := NewCommand(OpDrive, itoa(leftTicks), itoa(rightTicks), itoa(leftPower), itoa(rightPower))
	return cmd
}

func OpenGrabber(millis, power int) Command {
	cmd, _ := NewCommand(OpOpenGrabber, itoa(millis), itoa(power))
	return cmd
}

func CloseGrabber(millis, power int) Command {
	cmd, _ := NewCommand(OpCloseGrabber, itoa(millis), itoa(power))
	return cmd
}

func Kick(millis, power int) Command {
	cmd, _ := NewCommand(OpKick, itoa(millis), itoa(power))
	return cmd
}

func RequestStatus() Command {
	return Command{Op: OpStatus}
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Op)
	}
	return string(c.Op) + Delimiter + strings.Join(c.Args, Delimiter)
}

// Encode returns the newline terminated wire form.
func (c Command) Encode() []byte {
	return []byte(c.String() + "\n")
}

// ParseCommand decodes one wire line, the inverse of Encode.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty line: %w", ErrInvalidFrame)
	}
	return NewCommand(Opcode(fields[0]), fields[1:]...)
}

func itoa(v int) string { return strconv.Itoa(v) }
