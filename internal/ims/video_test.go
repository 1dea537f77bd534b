package ims

import "testing"

func TestParseVideoState(t *testing.T) {
	tests := []struct {
		in   string
		want VideoState
	}{
		{"", VideoStateAudioOnly},
		{"audio-only", VideoStateAudioOnly},
		{"tx", VideoStateTXEnabled},
		{"rx", VideoStateRXEnabled},
		{"bidirectional", VideoStateBidirectional},
		{"bidirectional+paused", VideoStateBidirectional | VideoStatePaused},
	}

	for _, tt := range tests {
		got, err := ParseVideoState(tt.in)
		if err != nil {
			t.Errorf("ParseVideoState(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVideoState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseVideoState("hologram"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestVideoStateRoundTrip(t *testing.T) {
	for _, v := range []VideoState{
		VideoStateAudioOnly,
		VideoStateTXEnabled,
		VideoStateRXEnabled,
		VideoStateBidirectional,
		VideoStateBidirectional | VideoStatePaused,
	} {
		back, err := ParseVideoState(v.String())
		if err != nil {
			t.Errorf("parsing %q: %v", v.String(), err)
			continue
		}
		if back != v {
			t.Errorf("round trip of %v gave %v", v, back)
		}
	}
}
