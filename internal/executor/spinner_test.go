package executor

import "testing"

func TestSpinnerCyclesWithPeriodFiveAndFixedWidth(t *testing.T) {
	s := &Spinner{}
	var frames []string
	for i := 0; i < 12; i++ {
		f := s.Next()
		if len(f) != 7 {
			t.Fatalf("frame %d (%q) is %d characters wide, want 7", i, f, len(f))
		}
		frames = append(frames, f)
	}
	for i := 0; i < 5; i++ {
		if frames[i] != frames[i+5] {
			t.Fatalf("spinner did not repeat with period 5: frame %d=%q frame %d=%q", i, frames[i], i+5, frames[i+5])
		}
	}
	if frames[0] == frames[1] {
		t.Fatal("expected successive frames to differ")
	}
}
