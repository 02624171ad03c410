package audio

import (
	"encoding/binary"
	"strings"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether capture runs over a headset
// profile with reduced sample rate.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var loopbackMarkers = []string{".monitor", "monitor of ", "stereo mix", "loopback", "what u hear"}

// Microphones drops loopback sources that capture speaker output. When nothing
// else is left the list is returned unchanged.
func Microphones(devices []DeviceInfo) []DeviceInfo {
	var mics []DeviceInfo
	for _, d := range devices {
		if !isLoopback(d) {
			mics = append(mics, d)
		}
	}
	if len(mics) == 0 {
		return devices
	}
	return mics
}

func isLoopback(d DeviceInfo) bool {
	s := strings.ToLower(d.ID + " " + d.Name)
	for _, m := range loopbackMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain multiplies samples before delivery; 0 means unity.
	Gain int32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

func applyGain(s int16, gain int32) int16 {
	if gain <= 1 {
		return s
	}
	v := int32(s) * gain
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// pcmBytes encodes samples as little-endian 16-bit PCM after gain.
func pcmBytes(samples []int16, gain int32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(applyGain(s, gain)))
	}
	return out
}

// amplifyPCM applies gain to little-endian 16-bit PCM, returning a new buffer.
func amplifyPCM(data []byte, gain int32) []byte {
	out := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		binary.LittleEndian.PutUint16(out[i:], uint16(applyGain(s, gain)))
	}
	return out
}
