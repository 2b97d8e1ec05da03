package algopulse

import "errors"

// Sentinel errors returned by decode operations.
var (
	// ErrNilTensor is returned when a required tensor or config is nil.
	ErrNilTensor = errors.New("algopulse: nil tensor")

	// ErrDimensionMismatch is returned when the pulse-set, column or range-bin
	// extents of two tensors do not agree, or when a tensor's backing slice
	// does not match its declared shape.
	ErrDimensionMismatch = errors.New("algopulse: dimension mismatch")

	// ErrRowOutOfRange is returned when a range row or offset lies outside
	// the range-bin extent of the tensor it indexes.
	ErrRowOutOfRange = errors.New("algopulse: range row out of range")

	// ErrInvalidTransformSize is returned when the transform size is < 1.
	ErrInvalidTransformSize = errors.New("algopulse: invalid transform size")

	// ErrInvalidPhaseCode is returned for an empty phase code or a chip
	// that is not +1 or -1.
	ErrInvalidPhaseCode = errors.New("algopulse: invalid phase code")

	// ErrInvalidStage is returned for a stage value outside the known set.
	ErrInvalidStage = errors.New("algopulse: invalid stage")

	// ErrUnsupportedStage is returned for stages that are reserved but not
	// implemented (StagePower).
	ErrUnsupportedStage = errors.New("algopulse: unsupported stage")

	// ErrUnknownEngine is returned for an unknown transform engine.
	ErrUnknownEngine = errors.New("algopulse: unknown transform engine")
)
