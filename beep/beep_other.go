//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

func play(mono []int16) {
	if len(mono) == 0 {
		return
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	buf := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	device, err := malgo.InitDevice(ctx.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			n := copy(out, buf[pos:])
			pos += n
			clear(out[n:])
			if pos >= len(buf) {
				once.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return
	}
	select {
	case <-done:
		// let the device drain its last period
		time.Sleep(50 * time.Millisecond)
	case <-time.After(2 * time.Second):
	}
}
