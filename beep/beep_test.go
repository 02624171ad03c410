package beep

import (
	"math"
	"testing"
)

func TestSamplesLength(t *testing.T) {
	tests := []struct {
		cue  Cue
		want int
	}{
		{Start, 8820},
		{Stop, 8820},
		{Failure, 3528*2 + 2205},
	}
	for _, tt := range tests {
		if got := len(samples(tt.cue)); got != tt.want {
			t.Errorf("len(samples(%d)) = %d, want %d", tt.cue, got, tt.want)
		}
	}
	if samples(Cue(99)) != nil {
		t.Error("unknown cue must render nothing")
	}
}

func TestSamplesDecay(t *testing.T) {
	s := samples(Start)
	peak := func(from, to int) float64 {
		var p float64
		for _, v := range s[from:to] {
			p = math.Max(p, math.Abs(float64(v)))
		}
		return p
	}
	head := peak(0, 441)
	tail := peak(len(s)-441, len(s))
	if head < 10000 || head > 0.5*32767+1 {
		t.Errorf("head peak = %.0f", head)
	}
	if tail >= head/100 {
		t.Errorf("tail peak %.0f did not decay from %.0f", tail, head)
	}
}

func TestFailureHasSilentGap(t *testing.T) {
	s := samples(Failure)
	gap := s[3528 : 3528+2205]
	for i, v := range gap {
		if v != 0 {
			t.Fatalf("gap sample %d = %d, want 0", i, v)
		}
	}
}

func TestPlayDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)
	Play(Start) // must return without touching audio
}
