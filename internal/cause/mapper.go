package cause

import (
	"strings"

	"github.com/imstrack/imstrack/internal/ims"
)

// RemapRule rewrites one session reason code based on the code and the
// reported message. Wildcard rules match any code.
type RemapRule struct {
	FromCode ims.ReasonCode
	Wildcard bool
	Message  string
	ToCode   ims.ReasonCode
}

// Mapper applies carrier remap rules and classifies reason codes into
// disconnect causes. A zero Mapper performs no remapping.
type Mapper struct {
	rules []RemapRule
}

// NewMapper builds a mapper over the given carrier remap rules.
func NewMapper(rules []RemapRule) *Mapper {
	return &Mapper{rules: rules}
}

// MaybeRemap rewrites the reason code per the carrier rules. An exact
// code+message rule wins over a wildcard-code rule; with no match the
// original code is kept. Message comparison is case-insensitive.
func (m *Mapper) MaybeRemap(r ims.ReasonInfo) ims.ReasonInfo {
	msg := strings.TrimSpace(r.Message)
	var wildcard *RemapRule
	for i := range m.rules {
		rule := &m.rules[i]
		if !strings.EqualFold(rule.Message, msg) {
			continue
		}
		if !rule.Wildcard && rule.FromCode == r.Code {
			r.Code = rule.ToCode
			return r
		}
		if rule.Wildcard && wildcard == nil {
			wildcard = rule
		}
	}
	if wildcard != nil {
		r.Code = wildcard.ToCode
	}
	return r
}

// DisconnectCauseFromReason classifies a reason into a disconnect
// cause. dialing selects the low-battery variant used when the call
// never connected. The function is total: unknown codes classify as
// ErrorUnspecified.
func DisconnectCauseFromReason(r ims.ReasonInfo, dialing bool) DisconnectCause {
	switch r.Code {
	case ims.CodeSIPBadAddress, ims.CodeSIPNotReachable:
		return NumberUnreachable

	case ims.CodeSIPBusy, ims.CodeLocalCallBusy:
		return Busy

	case ims.CodeUserTerminated:
		return Local

	case ims.CodeLocalEndedByConferenceMerge:
		return MergedSuccessfully

	case ims.CodeLocalCallDecline, ims.CodeRemoteCallDecline, ims.CodeUserDecline:
		return IncomingRejected

	case ims.CodeUserTerminatedByRemote, ims.CodeRadioReleaseNormal:
		return Normal

	case ims.CodeSIPForbidden, ims.CodeSIPRedirected, ims.CodeSIPBadRequest,
		ims.CodeSIPNotAcceptable, ims.CodeSIPUserRejected, ims.CodeSIPGlobalError:
		return ServerError

	case ims.CodeSIPServiceUnavailable, ims.CodeSIPNotFound,
		ims.CodeSIPServerInternalError, ims.CodeSIPServerError:
		return ServerUnreachable

	case ims.CodeLocalNetworkNoService, ims.CodeLocalNetworkNoLTECoverage,
		ims.CodeLocalNetworkRoaming, ims.CodeLocalNetworkIPChanged,
		ims.CodeLocalServiceUnavailable, ims.CodeLocalNotRegistered,
		ims.CodeLocalServiceDown, ims.CodeNetworkDetach:
		return OutOfService

	case ims.CodeTimeout1xxWaiting, ims.CodeTimeoutNoAnswer,
		ims.CodeTimeoutNoAnswerCallUpdate, ims.CodeSIPRequestTimeout,
		ims.CodeSIPServerTimeout, ims.CodeNetworkRespTimeout:
		return TimedOut

	case ims.CodeLocalPowerOff, ims.CodeRadioOff:
		return PowerOff

	case ims.CodeLocalLowBattery:
		if dialing {
			return DialLowBattery
		}
		return LowBattery

	case ims.CodeCallBarred:
		return CallBarred

	case ims.CodeFDNBlocked:
		return FDNBlocked

	case ims.CodeIMEINotAccepted:
		return IMEINotAccepted

	case ims.CodeAnsweredElsewhere:
		return AnsweredElsewhere

	case ims.CodeCallEndCauseCallPull:
		return CallPulled

	case ims.CodeLocalCallExceeded, ims.CodeMaxCallsReached:
		return MaximumCallsReached

	case ims.CodeDataDisabled:
		return DataDisabled

	case ims.CodeDataLimitReached:
		return DataLimitReached

	case ims.CodeWifiLost:
		return WifiLost

	case ims.CodeAccessClassBlocked:
		return AccessBlocked

	case ims.CodeEmergencyTempFailure:
		return EmergencyTempFailure

	case ims.CodeEmergencyPermFailure:
		return EmergencyPermFailure

	case ims.CodeDialModifiedToUSSD:
		return DialModifiedToUSSD
	case ims.CodeDialModifiedToSS:
		return DialModifiedToSS
	case ims.CodeDialModifiedToDial:
		return DialModifiedToDial
	case ims.CodeDialModifiedToDialVideo:
		return DialModifiedToDialVideo
	case ims.CodeDialVideoModifiedToDial:
		return DialVideoModifiedToDial
	case ims.CodeDialVideoModifiedToDialVideo:
		return DialVideoModifiedToDialVideo
	case ims.CodeDialVideoModifiedToSS:
		return DialVideoModifiedToSS
	case ims.CodeDialVideoModifiedToUSSD:
		return DialVideoModifiedToUSSD

	case ims.CodeUnobtainableNumber:
		return UnobtainableNumber

	case ims.CodeSIPAlternateEmergencyCall:
		return AlternateEmergencyCall

	default:
		return ErrorUnspecified
	}
}
