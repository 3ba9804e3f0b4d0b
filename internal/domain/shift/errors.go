package shift

import "errors"

var (
	ErrShiftNotFound       = errors.New("shift not found")
	ErrInvalidSegmentTime  = errors.New("invalid segment time, use HH:MM")
	ErrInvalidSegmentKind  = errors.New("segment kind must be 'work' or 'break'")
	ErrOverlappingSegments = errors.New("segments of a shift must not overlap")
)
