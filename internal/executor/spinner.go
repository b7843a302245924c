package executor

// spinnerFrames is the fixed 5-frame activity cycle shown during
// heartbeats, each exactly 7 characters wide.
var spinnerFrames = [5]string{
	"...    ",
	" ...   ",
	"  ...  ",
	"   ... ",
	"    ...",
}

// Spinner cycles through spinnerFrames on each call to Next.
type Spinner struct {
	n int
}

// Next returns the next frame in the cycle and advances it.
func (s *Spinner) Next() string {
	frame := spinnerFrames[s.n%5]
	s.n++
	return frame
}
