package ims

import (
	"fmt"
	"strings"
)

// VideoState is a bit field describing the video media of a call.
// TX and RX may be combined; Paused modifies an otherwise active
// video state.
type VideoState int

const (
	VideoStateAudioOnly     VideoState = 0
	VideoStateTXEnabled     VideoState = 1 << 0
	VideoStateRXEnabled     VideoState = 1 << 1
	VideoStateBidirectional VideoState = VideoStateTXEnabled | VideoStateRXEnabled
	VideoStatePaused        VideoState = 1 << 2
)

// IsVideo reports whether any video direction is enabled.
func (v VideoState) IsVideo() bool {
	return v&VideoStateBidirectional != 0
}

// IsPaused reports whether the paused bit is set.
func (v VideoState) IsPaused() bool {
	return v&VideoStatePaused != 0
}

// WithPause returns v with the paused bit set.
func (v VideoState) WithPause() VideoState {
	return v | VideoStatePaused
}

// WithoutPause returns v with the paused bit cleared.
func (v VideoState) WithoutPause() VideoState {
	return v &^ VideoStatePaused
}

// ParseVideoState is the inverse of String. The empty string parses
// as audio-only.
func ParseVideoState(s string) (VideoState, error) {
	base, paused := strings.CutSuffix(s, "+paused")
	var v VideoState
	switch base {
	case "", "audio-only":
		v = VideoStateAudioOnly
	case "tx":
		v = VideoStateTXEnabled
	case "rx":
		v = VideoStateRXEnabled
	case "bidirectional":
		v = VideoStateBidirectional
	default:
		return 0, fmt.Errorf("unknown video state %q", s)
	}
	if paused {
		v = v.WithPause()
	}
	return v, nil
}

func (v VideoState) String() string {
	if v == VideoStateAudioOnly {
		return "audio-only"
	}
	s := ""
	switch v.WithoutPause() {
	case VideoStateTXEnabled:
		s = "tx"
	case VideoStateRXEnabled:
		s = "rx"
	case VideoStateBidirectional:
		s = "bidirectional"
	default:
		s = "audio-only"
	}
	if v.IsPaused() {
		s += "+paused"
	}
	return s
}
