package own

import (
	"fmt"
	"strings"
)

// WhereGeneral is the general address: a probe sent here interrogates
// every device of the subsystem.
const WhereGeneral Where = "0"

// Where is an OpenWebNet bus address.
//
// Recognised forms:
//
//	"0"          general (all devices of the subsystem)
//	"#N"         group N
//	"N"          point-to-point (room/device, e.g. "15" or "25")
//	"N#L"        point-to-point on a local bus level (e.g. "15#4#12")
//
// The discovery engine treats where values as opaque identity strings;
// these helpers exist for validation and reporting only, never routing.
type Where string

// Validate checks that the address matches one of the recognised forms.
//
// Returns:
//   - error: ErrInvalidWhere (wrapped) describing the violation, or nil
func (w Where) Validate() error {
	s := string(w)
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWhere)
	}

	if strings.HasPrefix(s, "#") {
		group := s[1:]
		if !isNumericField(group) {
			return fmt.Errorf("%w: bad group %q", ErrInvalidWhere, s)
		}
		return nil
	}

	for _, part := range strings.Split(s, "#") {
		if !isNumericField(part) {
			return fmt.Errorf("%w: bad segment in %q", ErrInvalidWhere, s)
		}
	}
	return nil
}

// IsGeneral returns true for the general address.
func (w Where) IsGeneral() bool {
	return w == WhereGeneral
}

// IsGroup returns true for group addresses (#N).
func (w Where) IsGroup() bool {
	return strings.HasPrefix(string(w), "#")
}

// IsPointToPoint returns true for addresses naming a single device.
func (w Where) IsPointToPoint() bool {
	return w.Validate() == nil && !w.IsGeneral() && !w.IsGroup()
}

// String returns the wire form of the address.
func (w Where) String() string {
	return string(w)
}
