package own

import (
	"fmt"
	"strings"
	"time"
)

// Frame delimiters of the OpenWebNet wire format.
const (
	frameStart      = "*"
	frameEnd        = "##"
	fieldSeparator  = "*"
	dimensionPrefix = "*#"
)

// Well-known frames.
const (
	// FrameACK is the positive acknowledgement sent by the gateway.
	FrameACK = "*#*1##"

	// FrameNACK is the negative acknowledgement sent by the gateway.
	FrameNACK = "*#*0##"
)

// FrameKind identifies the grammatical form of a frame.
type FrameKind int

const (
	// KindCommand is a command frame: *WHO*WHAT*WHERE##
	KindCommand FrameKind = iota

	// KindStatusRequest is a status request frame: *#WHO*WHERE##
	// Probes use this form with WHERE set to the general address.
	KindStatusRequest

	// KindDimension is a dimension frame: *#WHO*WHERE*DIMENSION[*VAL...]##
	KindDimension

	// KindACK is the gateway's positive acknowledgement.
	KindACK

	// KindNACK is the gateway's negative acknowledgement.
	KindNACK
)

// String returns the kind name used in logs and event payloads.
func (k FrameKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindStatusRequest:
		return "status_request"
	case KindDimension:
		return "dimension"
	case KindACK:
		return "ack"
	case KindNACK:
		return "nack"
	default:
		return "unknown"
	}
}

// Frame represents a single OpenWebNet frame.
//
// A frame is the basic unit of communication on the bus. Field semantics
// depend on Kind: ACK/NACK frames carry no fields, status requests carry
// Who and Where, commands add What, and dimension frames add Dimension
// and Values.
type Frame struct {
	// Kind is the grammatical form of the frame.
	Kind FrameKind

	// Who identifies the subsystem (e.g. "1" for lighting, "18" for energy).
	Who string

	// What is the command action. Commands only. May carry # parameters
	// (e.g. "1000#1").
	What string

	// Where is the bus address the frame targets or reports for.
	Where Where

	// Dimension is the dimension identifier. Dimension frames only.
	Dimension string

	// Values are the dimension values. Dimension frames only.
	Values []string

	// Timestamp records when the frame was received or created.
	Timestamp time.Time
}

// DecodeError describes why a raw frame string could not be decoded.
// It wraps ErrInvalidFrame so callers can match with errors.Is.
type DecodeError struct {
	// Raw is the offending frame string.
	Raw string

	// Reason describes the grammar violation.
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("own: invalid frame %q: %s", e.Raw, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrInvalidFrame
}

// DecodeFrame parses a raw frame string into a Frame.
//
// Accepted forms:
//
//	*WHO*WHAT*WHERE##            command
//	*#WHO*WHERE##                status request
//	*#WHO*WHERE*DIM[*VAL...]##   dimension report or request
//	*#*1##                       ACK
//	*#*0##                       NACK
//
// The decoder is strict: surrounding whitespace, missing delimiters and
// empty mandatory fields are all rejected. Decoding never panics on
// arbitrary input.
//
// Parameters:
//   - raw: Raw frame string exactly as received from the gateway
//
// Returns:
//   - Frame: Parsed frame with timestamp set to now
//   - error: *DecodeError (wrapping ErrInvalidFrame) if parsing fails
func DecodeFrame(raw string) (Frame, error) {
	switch raw {
	case FrameACK:
		return Frame{Kind: KindACK, Timestamp: time.Now()}, nil
	case FrameNACK:
		return Frame{Kind: KindNACK, Timestamp: time.Now()}, nil
	}

	if !strings.HasPrefix(raw, frameStart) {
		return Frame{}, &DecodeError{Raw: raw, Reason: "missing leading *"}
	}
	if !strings.HasSuffix(raw, frameEnd) {
		return Frame{}, &DecodeError{Raw: raw, Reason: "missing trailing ##"}
	}

	body := strings.TrimSuffix(raw, frameEnd)

	if strings.HasPrefix(body, dimensionPrefix) {
		return decodeDimensionForm(raw, strings.TrimPrefix(body, dimensionPrefix))
	}
	return decodeCommandForm(raw, strings.TrimPrefix(body, frameStart))
}

// decodeCommandForm parses the body of *WHO*WHAT*WHERE##.
func decodeCommandForm(raw, body string) (Frame, error) {
	fields := strings.Split(body, fieldSeparator)
	if len(fields) != 3 {
		return Frame{}, &DecodeError{Raw: raw, Reason: fmt.Sprintf("command needs 3 fields, got %d", len(fields))}
	}

	who, what, where := fields[0], fields[1], fields[2]
	if !isNumericField(who) {
		return Frame{}, &DecodeError{Raw: raw, Reason: "who must be numeric"}
	}
	if what == "" {
		return Frame{}, &DecodeError{Raw: raw, Reason: "empty what"}
	}
	if err := Where(where).Validate(); err != nil {
		return Frame{}, &DecodeError{Raw: raw, Reason: "bad where: " + err.Error()}
	}

	return Frame{
		Kind:      KindCommand,
		Who:       who,
		What:      what,
		Where:     Where(where),
		Timestamp: time.Now(),
	}, nil
}

// decodeDimensionForm parses the body of *#WHO*WHERE##
// and *#WHO*WHERE*DIM[*VAL...]##.
func decodeDimensionForm(raw, body string) (Frame, error) {
	fields := strings.Split(body, fieldSeparator)
	if len(fields) < 2 {
		return Frame{}, &DecodeError{Raw: raw, Reason: "status frame needs at least who and where"}
	}

	who, where := fields[0], fields[1]
	if !isNumericField(who) {
		return Frame{}, &DecodeError{Raw: raw, Reason: "who must be numeric"}
	}
	if err := Where(where).Validate(); err != nil {
		return Frame{}, &DecodeError{Raw: raw, Reason: "bad where: " + err.Error()}
	}

	if len(fields) == 2 {
		return Frame{
			Kind:      KindStatusRequest,
			Who:       who,
			Where:     Where(where),
			Timestamp: time.Now(),
		}, nil
	}

	dimension := fields[2]
	if !isNumericField(dimension) {
		return Frame{}, &DecodeError{Raw: raw, Reason: "dimension must be numeric"}
	}

	var values []string
	if len(fields) > 3 {
		values = make([]string, len(fields)-3)
		copy(values, fields[3:])
		for i, v := range values {
			if v == "" {
				return Frame{}, &DecodeError{Raw: raw, Reason: fmt.Sprintf("empty value at position %d", i)}
			}
		}
	}

	return Frame{
		Kind:      KindDimension,
		Who:       who,
		Where:     Where(where),
		Dimension: dimension,
		Values:    values,
		Timestamp: time.Now(),
	}, nil
}

// isNumericField reports whether s is one or more ASCII digits.
func isNumericField(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Encode serialises the frame back to its wire form.
//
// Encoding a frame produced by DecodeFrame yields the original string,
// and decoding an encoded frame yields an equal frame (round-trip
// stability, ignoring timestamps).
//
// Returns:
//   - string: Wire representation ready to send to the gateway
func (f Frame) Encode() string {
	switch f.Kind {
	case KindACK:
		return FrameACK
	case KindNACK:
		return FrameNACK
	case KindCommand:
		return fmt.Sprintf("*%s*%s*%s##", f.Who, f.What, f.Where)
	case KindStatusRequest:
		return fmt.Sprintf("*#%s*%s##", f.Who, f.Where)
	case KindDimension:
		var b strings.Builder
		fmt.Fprintf(&b, "*#%s*%s*%s", f.Who, f.Where, f.Dimension)
		for _, v := range f.Values {
			b.WriteString(fieldSeparator)
			b.WriteString(v)
		}
		b.WriteString(frameEnd)
		return b.String()
	default:
		return ""
	}
}

// IsAck returns true for positive acknowledgement frames.
func (f Frame) IsAck() bool {
	return f.Kind == KindACK
}

// IsNack returns true for negative acknowledgement frames.
func (f Frame) IsNack() bool {
	return f.Kind == KindNACK
}

// IsReply returns true for frames that report device state
// (commands echoed on the bus and dimension reports), as opposed
// to acknowledgements.
func (f Frame) IsReply() bool {
	return f.Kind == KindCommand || f.Kind == KindDimension
}

// WhatValue returns the numeric value of What with any # parameters
// stripped. Returns -1 when What is absent or non-numeric.
func (f Frame) WhatValue() int {
	base := f.What
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	if !isNumericField(base) {
		return -1
	}
	n := 0
	for _, r := range base {
		n = n*10 + int(r-'0')
	}
	return n
}

// String returns a human-readable representation of the frame.
func (f Frame) String() string {
	switch f.Kind {
	case KindACK:
		return "Frame{ACK}"
	case KindNACK:
		return "Frame{NACK}"
	case KindCommand:
		return fmt.Sprintf("Frame{COMMAND, who:%s, what:%s, where:%s}", f.Who, f.What, f.Where)
	case KindStatusRequest:
		return fmt.Sprintf("Frame{STATUS_REQUEST, who:%s, where:%s}", f.Who, f.Where)
	case KindDimension:
		return fmt.Sprintf("Frame{DIMENSION, who:%s, where:%s, dim:%s, values:%v}", f.Who, f.Where, f.Dimension, f.Values)
	default:
		return "Frame{UNKNOWN}"
	}
}

// NewCommand creates a new command frame.
//
// Parameters:
//   - who: Subsystem identifier
//   - what: Command action
//   - where: Target bus address
//
// Returns:
//   - Frame: Ready to encode and send
func NewCommand(who, what string, where Where) Frame {
	return Frame{
		Kind:      KindCommand,
		Who:       who,
		What:      what,
		Where:     where,
		Timestamp: time.Now(),
	}
}

// NewStatusRequest creates a new status request frame.
// Probes use WhereGeneral to interrogate every device of a subsystem.
//
// Parameters:
//   - who: Subsystem identifier
//   - where: Address to interrogate
//
// Returns:
//   - Frame: Ready to encode and send
func NewStatusRequest(who string, where Where) Frame {
	return Frame{
		Kind:      KindStatusRequest,
		Who:       who,
		Where:     where,
		Timestamp: time.Now(),
	}
}

// NewDimensionReport creates a new dimension frame.
//
// Parameters:
//   - who: Subsystem identifier
//   - where: Reporting bus address
//   - dimension: Dimension identifier
//   - values: Dimension values (may be nil for a dimension request)
//
// Returns:
//   - Frame: Ready to encode and send
func NewDimensionReport(who string, where Where, dimension string, values ...string) Frame {
	return Frame{
		Kind:      KindDimension,
		Who:       who,
		Where:     where,
		Dimension: dimension,
		Values:    values,
		Timestamp: time.Now(),
	}
}
