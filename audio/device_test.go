package audio

import "testing"

func TestFindDevice(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "alsa_input.usb-Blue_Yeti", Name: "Yeti Stereo Microphone"},
		{ID: "bluez_source.00_1B", Name: "AirPods Pro"},
	}
	tests := []struct {
		want   string
		wantID string
		ok     bool
	}{
		{"yeti", "alsa_input.usb-Blue_Yeti", true},
		{"  AIRPODS ", "bluez_source.00_1B", true},
		{"bluez", "bluez_source.00_1B", true},
		{"webcam", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		d, ok := FindDevice(devices, tt.want)
		if ok != tt.ok {
			t.Errorf("FindDevice(%q) ok = %v, want %v", tt.want, ok, tt.ok)
			continue
		}
		if ok && d.ID != tt.wantID {
			t.Errorf("FindDevice(%q) = %s, want %s", tt.want, d.ID, tt.wantID)
		}
	}
}

func TestSelectDeviceByName(t *testing.T) {
	ctx := NewFakeContext(nil, false)

	d, err := SelectDevice(ctx, "fake")
	if err != nil || d.Name != "fake" {
		t.Fatalf("SelectDevice = %v, %v", d, err)
	}
	if _, err := SelectDevice(ctx, "missing"); err == nil {
		t.Error("expected error for unknown device")
	}

	// one device needs no picker
	d, err = SelectDevice(ctx, "")
	if err != nil || d.ID != "fake" {
		t.Fatalf("SelectDevice single = %v, %v", d, err)
	}

	ctx.NoDevices = true
	if _, err := SelectDevice(ctx, ""); err == nil {
		t.Error("expected error without devices")
	}
}

func TestMoveCursor(t *testing.T) {
	if got := moveCursor(0, -1, 3); got != 0 {
		t.Errorf("moveCursor clamps low: %d", got)
	}
	if got := moveCursor(2, 1, 3); got != 2 {
		t.Errorf("moveCursor clamps high: %d", got)
	}
	if got := moveCursor(1, 1, 3); got != 2 {
		t.Errorf("moveCursor = %d", got)
	}
}

func TestMicrophones(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", Name: "Monitor of Built-in Audio"},
		{ID: "alsa_input.pci-0000_00_1f.3.analog-stereo", Name: "Built-in Audio Analog Stereo"},
		{ID: "0a1b", Name: "Stereo Mix (Realtek)"},
	}
	got := Microphones(devices)
	if len(got) != 1 || got[0].ID != "alsa_input.pci-0000_00_1f.3.analog-stereo" {
		t.Errorf("Microphones = %+v", got)
	}

	onlyMonitors := devices[:1]
	if got := Microphones(onlyMonitors); len(got) != 1 {
		t.Errorf("a list of loopbacks only should be kept, got %+v", got)
	}
}

func TestAmplifyPCM(t *testing.T) {
	in := []byte{0x10, 0x00, 0x00, 0x40, 0x00, 0xC0} // 16, 16384, -16384
	got := amplifyPCM(in, 4)
	want := []byte{0x40, 0x00, 0xFF, 0x7F, 0x00, 0x80} // 64, clipped max, clipped min
	if string(got) != string(want) {
		t.Errorf("amplifyPCM = % x, want % x", got, want)
	}
	if string(amplifyPCM(in, 0)) != string(in) {
		t.Error("gain 0 must leave samples unchanged")
	}
	if got := pcmBytes([]int16{1, -1}, 1); string(got) != string([]byte{0x01, 0x00, 0xFF, 0xFF}) {
		t.Errorf("pcmBytes = % x", got)
	}
}
