package cause

import "github.com/imstrack/imstrack/internal/ims"

// PreciseCause preserves finer-grained failure detail than
// DisconnectCause, for diagnostics and CDRs.
type PreciseCause int

const (
	PreciseUnspecified PreciseCause = iota
	PreciseUnobtainableNumber
	PreciseNormal
	PreciseBusy
	PreciseNumberChanged
	PreciseNormalUnspecified
	PreciseNoUserResponding
	PreciseNoAnswerFromUser
	PreciseCallRejected
	PreciseDestinationOutOfOrder
	PreciseNetworkOutOfOrder
	PreciseTemporaryFailure
	PreciseServiceNotAvailable
	PreciseBearerNotAuthorized
	PreciseBearerNotAvailable
	PreciseTimerExpired
	PreciseCallBarred
	PreciseFDNBlocked
	PreciseIMEINotAccepted
	PreciseAnsweredElsewhere
	PreciseCallPulled
	PreciseAccessClassBlocked
	PreciseEmergencyTempFailure
	PreciseEmergencyPermFailure
	PreciseInterworkingUnspecified
)

// preciseByReason is the data-driven refinement of session reason
// codes. Codes absent from the table report PreciseUnspecified.
var preciseByReason = map[ims.ReasonCode]PreciseCause{
	ims.CodeSIPBadAddress:           PreciseUnobtainableNumber,
	ims.CodeSIPNotReachable:         PreciseUnobtainableNumber,
	ims.CodeUnobtainableNumber:      PreciseUnobtainableNumber,
	ims.CodeSIPBusy:                 PreciseBusy,
	ims.CodeLocalCallBusy:           PreciseBusy,
	ims.CodeUserTerminated:          PreciseNormal,
	ims.CodeUserTerminatedByRemote:  PreciseNormal,
	ims.CodeRadioReleaseNormal:      PreciseNormal,
	ims.CodeUserNoAnswer:            PreciseNoAnswerFromUser,
	ims.CodeTimeoutNoAnswer:         PreciseNoAnswerFromUser,
	ims.CodeTimeout1xxWaiting:       PreciseNoUserResponding,
	ims.CodeTimeoutNoAnswerCallUpdate: PreciseNoAnswerFromUser,
	ims.CodeUserDecline:             PreciseCallRejected,
	ims.CodeLocalCallDecline:        PreciseCallRejected,
	ims.CodeRemoteCallDecline:       PreciseCallRejected,
	ims.CodeSIPUserRejected:         PreciseCallRejected,
	ims.CodeSIPForbidden:            PreciseCallRejected,
	ims.CodeLocalNetworkNoService:   PreciseNetworkOutOfOrder,
	ims.CodeLocalNetworkNoLTECoverage: PreciseNetworkOutOfOrder,
	ims.CodeLocalServiceUnavailable: PreciseServiceNotAvailable,
	ims.CodeLocalNotRegistered:      PreciseServiceNotAvailable,
	ims.CodeSIPServiceUnavailable:   PreciseServiceNotAvailable,
	ims.CodeSIPTemporarilyUnavailable: PreciseTemporaryFailure,
	ims.CodeSIPServerTimeout:        PreciseTimerExpired,
	ims.CodeSIPRequestTimeout:       PreciseTimerExpired,
	ims.CodeNetworkRespTimeout:      PreciseTimerExpired,
	ims.CodeCallBarred:              PreciseCallBarred,
	ims.CodeFDNBlocked:              PreciseFDNBlocked,
	ims.CodeIMEINotAccepted:         PreciseIMEINotAccepted,
	ims.CodeAnsweredElsewhere:       PreciseAnsweredElsewhere,
	ims.CodeCallEndCauseCallPull:    PreciseCallPulled,
	ims.CodeAccessClassBlocked:      PreciseAccessClassBlocked,
	ims.CodeEmergencyTempFailure:    PreciseEmergencyTempFailure,
	ims.CodeEmergencyPermFailure:    PreciseEmergencyPermFailure,
	ims.CodeSIPBadRequest:           PreciseInterworkingUnspecified,
	ims.CodeSIPNotAcceptable:        PreciseInterworkingUnspecified,
	ims.CodeSIPGlobalError:          PreciseInterworkingUnspecified,
	ims.CodeSIPServerInternalError:  PreciseNetworkOutOfOrder,
	ims.CodeSIPServerError:          PreciseNetworkOutOfOrder,
	ims.CodeMediaInitFailed:         PreciseBearerNotAvailable,
	ims.CodeMediaNoData:             PreciseBearerNotAvailable,
	ims.CodeMediaNotAcceptable:      PreciseBearerNotAuthorized,
	ims.CodeDataDisabled:            PreciseBearerNotAuthorized,
	ims.CodeDataLimitReached:        PreciseBearerNotAuthorized,
}

// PreciseCauseFromReason refines a reason code. Total over all codes.
func PreciseCauseFromReason(r ims.ReasonInfo) PreciseCause {
	if p, ok := preciseByReason[r.Code]; ok {
		return p
	}
	return PreciseUnspecified
}
