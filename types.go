package algopulse

import (
	"fmt"
	"strconv"
	"strings"
)

// SampleTensor holds raw IQ radar returns indexed [set][col][bin].
//
// Each element is one complex sample; complex64 has the same memory layout
// as the interleaved [..][2]float32 {real, imaginary} pair used on disk.
// Decoders treat a SampleTensor as read-only.
type SampleTensor struct {
	Sets int // pulse-sets
	Cols int // pulses per set
	Bins int // raw range-bins per pulse
	Data []complex64
}

// NewSampleTensor allocates a zeroed sample tensor.
func NewSampleTensor(sets, cols, bins int) (*SampleTensor, error) {
	if sets < 1 || cols < 1 || bins < 1 {
		return nil, fmt.Errorf("%w: sample tensor %dx%dx%d", ErrDimensionMismatch, sets, cols, bins)
	}

	return &SampleTensor{
		Sets: sets,
		Cols: cols,
		Bins: bins,
		Data: make([]complex64, sets*cols*bins),
	}, nil
}

// SampleTensorFromInterleaved builds a tensor from a flat [S][C][R][2]
// float32 slice. The data is copied.
func SampleTensorFromInterleaved(sets, cols, bins int, iq []float32) (*SampleTensor, error) {
	t, err := NewSampleTensor(sets, cols, bins)
	if err != nil {
		return nil, err
	}

	if len(iq) != 2*len(t.Data) {
		return nil, fmt.Errorf("%w: %d interleaved values for %dx%dx%d samples",
			ErrDimensionMismatch, len(iq), sets, cols, bins)
	}

	for i := range t.Data {
		t.Data[i] = complex(iq[2*i], iq[2*i+1])
	}

	return t, nil
}

// At returns the sample at [set][col][bin].
func (t *SampleTensor) At(set, col, bin int) complex64 {
	return t.Data[(set*t.Cols+col)*t.Bins+bin]
}

// Set stores v at [set][col][bin].
func (t *SampleTensor) Set(set, col, bin int, v complex64) {
	t.Data[(set*t.Cols+col)*t.Bins+bin] = v
}

// Series returns the range profile of one pulse as a view into Data.
func (t *SampleTensor) Series(set, col int) []complex64 {
	start := (set*t.Cols + col) * t.Bins
	return t.Data[start : start+t.Bins]
}

func (t *SampleTensor) validate() error {
	if t == nil {
		return ErrNilTensor
	}

	if t.Sets < 1 || t.Cols < 1 || t.Bins < 1 || len(t.Data) != t.Sets*t.Cols*t.Bins {
		return fmt.Errorf("%w: sample tensor %dx%dx%d backed by %d samples",
			ErrDimensionMismatch, t.Sets, t.Cols, t.Bins, len(t.Data))
	}

	return nil
}

// PhaseCode is the transmitted pulse-compression code, one ±1 per chip.
type PhaseCode []float32

// ParsePhaseCode parses either a sign string ("+-+") or a comma separated
// list of numbers ("1,-1,1").
func ParsePhaseCode(s string) (PhaseCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPhaseCode)
	}

	if strings.Trim(s, "+-") == "" {
		code := make(PhaseCode, len(s))
		for i, r := range s {
			code[i] = 1
			if r == '-' {
				code[i] = -1
			}
		}

		return code, nil
	}

	parts := strings.Split(s, ",")
	code := make(PhaseCode, 0, len(parts))

	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: chip %q: %v", ErrInvalidPhaseCode, part, err)
		}

		code = append(code, float32(v))
	}

	if err := code.Validate(); err != nil {
		return nil, err
	}

	return code, nil
}

// Validate reports whether the code is non-empty and every chip is ±1.
func (p PhaseCode) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPhaseCode)
	}

	for i, chip := range p {
		if chip != 1 && chip != -1 {
			return fmt.Errorf("%w: chip %d is %v", ErrInvalidPhaseCode, i, chip)
		}
	}

	return nil
}

// String renders the code as a sign string.
func (p PhaseCode) String() string {
	var b strings.Builder
	for _, chip := range p {
		if chip < 0 {
			b.WriteByte('-')
		} else {
			b.WriteByte('+')
		}
	}

	return b.String()
}

// DecodedTensor holds one peak magnitude per pulse per range row,
// indexed [set][col][bin].
type DecodedTensor struct {
	Sets int
	Cols int
	Bins int
	Data []float32
}

// NewDecodedTensor allocates a zeroed decoded tensor.
func NewDecodedTensor(sets, cols, bins int) *DecodedTensor {
	return &DecodedTensor{
		Sets: sets,
		Cols: cols,
		Bins: bins,
		Data: make([]float32, sets*cols*bins),
	}
}

// At returns the decoded value at [set][col][bin].
func (t *DecodedTensor) At(set, col, bin int) float32 {
	return t.Data[(set*t.Cols+col)*t.Bins+bin]
}

func (t *DecodedTensor) validate() error {
	if t == nil {
		return ErrNilTensor
	}

	if len(t.Data) != t.Sets*t.Cols*t.Bins {
		return fmt.Errorf("%w: decoded tensor %dx%dx%d backed by %d values",
			ErrDimensionMismatch, t.Sets, t.Cols, t.Bins, len(t.Data))
	}

	return nil
}

// IntermediateBuffer is pipeline state for one range row, indexed
// [set][col][k] with k in [0, Size). It holds the correlated samples after
// the phase-code stage or the spectrum after the transform stage.
type IntermediateBuffer struct {
	Sets int
	Cols int
	Size int // transform size F
	// Row is the range row the buffer was produced for, -1 if none.
	Row  int
	Data []complex64
}

// NewIntermediateBuffer allocates a zeroed buffer of shape [sets][cols][size].
func NewIntermediateBuffer(sets, cols, size int) *IntermediateBuffer {
	return &IntermediateBuffer{
		Sets: sets,
		Cols: cols,
		Size: size,
		Row:  -1,
		Data: make([]complex64, sets*cols*size),
	}
}

// At returns element k of the series for [set][col].
func (b *IntermediateBuffer) At(set, col, k int) complex64 {
	return b.Data[(set*b.Cols+col)*b.Size+k]
}

// Series returns the F-length series for [set][col] as a view into Data.
func (b *IntermediateBuffer) Series(set, col int) []complex64 {
	start := (set*b.Cols + col) * b.Size
	return b.Data[start : start+b.Size]
}

// Clone returns a deep copy of b.
func (b *IntermediateBuffer) Clone() *IntermediateBuffer {
	c := *b
	c.Data = append([]complex64(nil), b.Data...)

	return &c
}

func (b *IntermediateBuffer) validate() error {
	if b == nil {
		return ErrNilTensor
	}

	if b.Size < 1 || len(b.Data) != b.Sets*b.Cols*b.Size {
		return fmt.Errorf("%w: intermediate buffer %dx%dx%d backed by %d samples",
			ErrDimensionMismatch, b.Sets, b.Cols, b.Size, len(b.Data))
	}

	return nil
}
