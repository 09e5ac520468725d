package input

// DefaultConsecFrames is the number of consecutive closed-eye frames required
// before an eye is reported closed.
const DefaultConsecFrames = 3

// Stabilizer debounces per-frame eye observations into stable closed/open signals.
//
// It is not safe for concurrent use; the detection loop owns it and must call
// Stabilize once per processed frame, in frame order.
type Stabilizer struct {
	threshold    int
	leftCounter  int
	rightCounter int
}

// NewStabilizer creates a Stabilizer requiring threshold consecutive closed
// observations. Values below 1 are treated as 1.
func NewStabilizer(threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = 1
	}
	return &Stabilizer{threshold: threshold}
}

// Threshold returns the consecutive-frame threshold.
func (s *Stabilizer) Threshold() int {
	return s.threshold
}

// Stabilize converts one raw observation into a FrameInput.
//
// Cursor position and tongue state pass through untouched.
func (s *Stabilizer) Stabilize(raw RawObservation) FrameInput {
	in := FrameInput{
		LeftEyeClosed:  s.debounce(&s.leftCounter, raw.LeftEyeOpen),
		RightEyeClosed: s.debounce(&s.rightCounter, raw.RightEyeOpen),
		Cursor:         raw.Face,
	}
	if tongue, ok := raw.Tongue.Get(); ok {
		in.TongueDown = Some(tongue.Down)
	}
	return in
}

// Reset clears both eye counters.
func (s *Stabilizer) Reset() {
	s.leftCounter = 0
	s.rightCounter = 0
}

// debounce updates counter from one eye observation. A missing observation
// breaks the streak and yields None.
func (s *Stabilizer) debounce(counter *int, open Optional[bool]) Optional[bool] {
	isOpen, ok := open.Get()
	if !ok {
		*counter = 0
		return None[bool]()
	}
	if isOpen {
		*counter = 0
	} else {
		*counter++
	}
	return Some(*counter >= s.threshold)
}
