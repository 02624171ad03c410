// Package beep plays short recording cues: a tick when capture starts, a lower
// tick when it stops and a double beep when a recording fails.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

type Cue int

const (
	Start Cue = iota
	Stop
	Failure
)

// tone is a decaying sine, repeated pulses times with gap seconds of silence between.
type tone struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
	pulses   int
	gap      float64
}

var tones = map[Cue]tone{
	Start:   {freq: 1200, duration: 0.2, volume: 0.5, decay: 60, pulses: 1},
	Stop:    {freq: 900, duration: 0.2, volume: 0.5, decay: 40, pulses: 1},
	Failure: {freq: 350, duration: 0.08, volume: 0.6, decay: 30, pulses: 2, gap: 0.05},
}

var (
	enabled atomic.Bool
	playMu  sync.Mutex
)

func init() {
	enabled.Store(true)
}

func SetEnabled(on bool) { enabled.Store(on) }

// Play renders c on the default output device without blocking. Playback errors
// are ignored; a missing sound server must never fail a recording.
func Play(c Cue) {
	if !enabled.Load() {
		return
	}
	pcm := samples(c)
	go func() {
		playMu.Lock()
		defer playMu.Unlock()
		play(pcm)
	}()
}

// samples renders c as mono 16-bit PCM at sampleRate.
func samples(c Cue) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	pulse := make([]int16, int(sampleRate*t.duration))
	for i := range pulse {
		x := float64(i) / sampleRate
		pulse[i] = int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * math.Exp(-x*t.decay))
	}
	gap := make([]int16, int(sampleRate*t.gap))

	out := make([]int16, 0, t.pulses*len(pulse)+(t.pulses-1)*len(gap))
	for p := 0; p < t.pulses; p++ {
		if p > 0 {
			out = append(out, gap...)
		}
		out = append(out, pulse...)
	}
	return out
}
