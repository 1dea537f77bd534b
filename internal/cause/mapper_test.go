package cause

import (
	"testing"

	"github.com/imstrack/imstrack/internal/ims"
)

func TestMaybeRemap_ExactBeatsWildcard(t *testing.T) {
	m := NewMapper([]RemapRule{
		{Wildcard: true, Message: "congestion", ToCode: ims.CodeSIPBusy},
		{FromCode: ims.CodeSIPServiceUnavailable, Message: "congestion", ToCode: ims.CodeMaxCallsReached},
	})

	got := m.MaybeRemap(ims.ReasonInfo{Code: ims.CodeSIPServiceUnavailable, Message: "congestion"})
	if got.Code != ims.CodeMaxCallsReached {
		t.Errorf("exact rule: got code %d, want %d", got.Code, ims.CodeMaxCallsReached)
	}
}

func TestMaybeRemap_WildcardMatchesAnyCode(t *testing.T) {
	m := NewMapper([]RemapRule{
		{Wildcard: true, Message: "congestion", ToCode: ims.CodeSIPBusy},
	})

	for _, code := range []ims.ReasonCode{ims.CodeSIPServerError, ims.CodeUnspecified, ims.CodeMediaNoData} {
		got := m.MaybeRemap(ims.ReasonInfo{Code: code, Message: "congestion"})
		if got.Code != ims.CodeSIPBusy {
			t.Errorf("wildcard rule: code %d remapped to %d, want %d", code, got.Code, ims.CodeSIPBusy)
		}
	}
}

func TestMaybeRemap_NoMatchKeepsOriginal(t *testing.T) {
	m := NewMapper([]RemapRule{
		{FromCode: ims.CodeSIPBusy, Message: "busy here", ToCode: ims.CodeMaxCallsReached},
	})

	tests := []ims.ReasonInfo{
		{Code: ims.CodeSIPBusy, Message: "some other message"},
		{Code: ims.CodeSIPServerError, Message: "busy here"},
		{Code: ims.CodeUserTerminated},
	}
	for _, r := range tests {
		if got := m.MaybeRemap(r); got.Code != r.Code {
			t.Errorf("remap(%v) = %d, want original %d", r, got.Code, r.Code)
		}
	}
}

func TestMaybeRemap_MessageCaseInsensitive(t *testing.T) {
	m := NewMapper([]RemapRule{
		{FromCode: ims.CodeSIPServiceUnavailable, Message: "Temporarily Unavailable", ToCode: ims.CodeSIPBusy},
	})

	got := m.MaybeRemap(ims.ReasonInfo{Code: ims.CodeSIPServiceUnavailable, Message: "temporarily unavailable"})
	if got.Code != ims.CodeSIPBusy {
		t.Errorf("got code %d, want %d", got.Code, ims.CodeSIPBusy)
	}
}

func TestMaybeRemap_ZeroMapperIsIdentity(t *testing.T) {
	var m Mapper
	r := ims.ReasonInfo{Code: ims.CodeSIPBusy, Message: "busy"}
	if got := m.MaybeRemap(r); got != r {
		t.Errorf("zero mapper changed %v to %v", r, got)
	}
}

func TestDisconnectCauseFromReason(t *testing.T) {
	tests := []struct {
		name    string
		reason  ims.ReasonInfo
		dialing bool
		want    DisconnectCause
	}{
		{"bad address", ims.ReasonInfo{Code: ims.CodeSIPBadAddress}, false, NumberUnreachable},
		{"busy", ims.ReasonInfo{Code: ims.CodeSIPBusy}, false, Busy},
		{"user terminated", ims.ReasonInfo{Code: ims.CodeUserTerminated}, false, Local},
		{"remote terminated", ims.ReasonInfo{Code: ims.CodeUserTerminatedByRemote}, false, Normal},
		{"conference merge", ims.ReasonInfo{Code: ims.CodeLocalEndedByConferenceMerge}, false, MergedSuccessfully},
		{"local decline", ims.ReasonInfo{Code: ims.CodeLocalCallDecline}, false, IncomingRejected},
		{"remote decline", ims.ReasonInfo{Code: ims.CodeRemoteCallDecline}, false, IncomingRejected},
		{"forbidden", ims.ReasonInfo{Code: ims.CodeSIPForbidden}, false, ServerError},
		{"service unavailable", ims.ReasonInfo{Code: ims.CodeSIPServiceUnavailable}, false, ServerUnreachable},
		{"no service", ims.ReasonInfo{Code: ims.CodeLocalNetworkNoService}, false, OutOfService},
		{"no answer", ims.ReasonInfo{Code: ims.CodeTimeoutNoAnswer}, false, TimedOut},
		{"power off", ims.ReasonInfo{Code: ims.CodeLocalPowerOff}, false, PowerOff},
		{"low battery connected", ims.ReasonInfo{Code: ims.CodeLocalLowBattery}, false, LowBattery},
		{"low battery dialing", ims.ReasonInfo{Code: ims.CodeLocalLowBattery}, true, DialLowBattery},
		{"call barred", ims.ReasonInfo{Code: ims.CodeCallBarred}, false, CallBarred},
		{"fdn blocked", ims.ReasonInfo{Code: ims.CodeFDNBlocked}, false, FDNBlocked},
		{"answered elsewhere", ims.ReasonInfo{Code: ims.CodeAnsweredElsewhere}, false, AnsweredElsewhere},
		{"call pull", ims.ReasonInfo{Code: ims.CodeCallEndCauseCallPull}, false, CallPulled},
		{"max calls", ims.ReasonInfo{Code: ims.CodeMaxCallsReached}, false, MaximumCallsReached},
		{"data disabled", ims.ReasonInfo{Code: ims.CodeDataDisabled}, false, DataDisabled},
		{"data limit", ims.ReasonInfo{Code: ims.CodeDataLimitReached}, false, DataLimitReached},
		{"wifi lost", ims.ReasonInfo{Code: ims.CodeWifiLost}, false, WifiLost},
		{"access blocked", ims.ReasonInfo{Code: ims.CodeAccessClassBlocked}, false, AccessBlocked},
		{"emergency temp", ims.ReasonInfo{Code: ims.CodeEmergencyTempFailure}, false, EmergencyTempFailure},
		{"emergency perm", ims.ReasonInfo{Code: ims.CodeEmergencyPermFailure}, false, EmergencyPermFailure},
		{"dial modified to ussd", ims.ReasonInfo{Code: ims.CodeDialModifiedToUSSD}, false, DialModifiedToUSSD},
		{"unobtainable", ims.ReasonInfo{Code: ims.CodeUnobtainableNumber}, false, UnobtainableNumber},
		{"alternate emergency", ims.ReasonInfo{Code: ims.CodeSIPAlternateEmergencyCall}, false, AlternateEmergencyCall},
		{"unknown code degrades", ims.ReasonInfo{Code: ims.ReasonCode(99999)}, false, ErrorUnspecified},
		{"zero reason degrades", ims.ReasonInfo{}, false, ErrorUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisconnectCauseFromReason(tt.reason, tt.dialing); got != tt.want {
				t.Errorf("DisconnectCauseFromReason(%v, %v) = %v, want %v", tt.reason, tt.dialing, got, tt.want)
			}
		})
	}
}

func TestPreciseCauseFromReason(t *testing.T) {
	tests := []struct {
		reason ims.ReasonCode
		want   PreciseCause
	}{
		{ims.CodeSIPBusy, PreciseBusy},
		{ims.CodeUserTerminated, PreciseNormal},
		{ims.CodeCallBarred, PreciseCallBarred},
		{ims.CodeAnsweredElsewhere, PreciseAnsweredElsewhere},
		{ims.ReasonCode(99999), PreciseUnspecified},
	}
	for _, tt := range tests {
		if got := PreciseCauseFromReason(ims.ReasonInfo{Code: tt.reason}); got != tt.want {
			t.Errorf("PreciseCauseFromReason(%d) = %v, want %v", tt.reason, got, tt.want)
		}
	}
}
