package ims

import "fmt"

// ReasonCode identifies why a session operation failed or why a session
// ended. Codes are grouped by origin: local stack conditions, timeouts,
// SIP responses, media failures, remote user actions, and network or
// service-level conditions.
type ReasonCode int

const (
	CodeUnspecified ReasonCode = 0

	// Local stack conditions.
	CodeLocalIllegalArgument       ReasonCode = 101
	CodeLocalIllegalState          ReasonCode = 102
	CodeLocalInternalError         ReasonCode = 103
	CodeLocalServiceDown           ReasonCode = 106
	CodeLocalNoPendingCall         ReasonCode = 107
	CodeLocalEndedByConferenceMerge ReasonCode = 108
	CodeLocalPowerOff              ReasonCode = 111
	CodeLocalLowBattery            ReasonCode = 112
	CodeLocalNetworkNoService      ReasonCode = 121
	CodeLocalNetworkNoLTECoverage  ReasonCode = 122
	CodeLocalNetworkRoaming        ReasonCode = 123
	CodeLocalNetworkIPChanged      ReasonCode = 124
	CodeLocalServiceUnavailable    ReasonCode = 131
	CodeLocalNotRegistered         ReasonCode = 132
	CodeLocalCallExceeded          ReasonCode = 141
	CodeLocalCallBusy              ReasonCode = 142
	CodeLocalCallDecline           ReasonCode = 143
	CodeLocalCallVCCOnProgressing  ReasonCode = 144
	CodeLocalCallResourceReservationFailed ReasonCode = 145
	CodeLocalCallCSRetryRequired   ReasonCode = 146
	CodeLocalCallVolteRetryRequired ReasonCode = 147
	CodeLocalCallTerminated        ReasonCode = 148
	CodeLocalHandoverNotFeasible   ReasonCode = 149

	// Timeouts.
	CodeTimeout1xxWaiting         ReasonCode = 201
	CodeTimeoutNoAnswer           ReasonCode = 202
	CodeTimeoutNoAnswerCallUpdate ReasonCode = 203

	// Restriction by configuration.
	CodeCallBarred ReasonCode = 240
	CodeFDNBlocked ReasonCode = 241

	// Dial request converted by the network or carrier policy.
	CodeDialModifiedToUSSD      ReasonCode = 245
	CodeDialModifiedToSS        ReasonCode = 246
	CodeDialModifiedToDial      ReasonCode = 247
	CodeDialModifiedToDialVideo ReasonCode = 248
	CodeDialVideoModifiedToDial      ReasonCode = 249
	CodeDialVideoModifiedToDialVideo ReasonCode = 250
	CodeDialVideoModifiedToSS        ReasonCode = 251
	CodeDialVideoModifiedToUSSD      ReasonCode = 252

	// SIP responses.
	CodeSIPRedirected           ReasonCode = 321
	CodeSIPBadRequest           ReasonCode = 331
	CodeSIPForbidden            ReasonCode = 332
	CodeSIPNotFound             ReasonCode = 333
	CodeSIPNotSupported         ReasonCode = 334
	CodeSIPRequestTimeout       ReasonCode = 335
	CodeSIPTemporarilyUnavailable ReasonCode = 336
	CodeSIPBadAddress           ReasonCode = 337
	CodeSIPBusy                 ReasonCode = 338
	CodeSIPRequestCancelled     ReasonCode = 339
	CodeSIPNotAcceptable        ReasonCode = 340
	CodeSIPNotReachable         ReasonCode = 341
	CodeSIPClientError          ReasonCode = 342
	CodeSIPServerInternalError  ReasonCode = 351
	CodeSIPServiceUnavailable   ReasonCode = 352
	CodeSIPServerTimeout        ReasonCode = 353
	CodeSIPServerError          ReasonCode = 354
	CodeSIPUserRejected         ReasonCode = 361
	CodeSIPGlobalError          ReasonCode = 362

	// Media failures.
	CodeMediaInitFailed    ReasonCode = 401
	CodeMediaNoData        ReasonCode = 402
	CodeMediaNotAcceptable ReasonCode = 403
	CodeMediaUnspecified   ReasonCode = 404

	// User actions.
	CodeUserTerminated         ReasonCode = 501
	CodeUserNoAnswer           ReasonCode = 502
	CodeUserIgnore             ReasonCode = 503
	CodeUserDecline            ReasonCode = 504
	CodeUserTerminatedByRemote ReasonCode = 510

	// Multi-endpoint dispositions.
	CodeAnsweredElsewhere    ReasonCode = 1014
	CodeCallPullOutOfSync    ReasonCode = 1015
	CodeCallEndCauseCallPull ReasonCode = 1016

	// Radio and registration conditions reported by the lower layers.
	CodeRadioOff            ReasonCode = 1500
	CodeNoValidSIM          ReasonCode = 1501
	CodeRadioInternalError  ReasonCode = 1502
	CodeNetworkRespTimeout  ReasonCode = 1503
	CodeNetworkReject       ReasonCode = 1504
	CodeRadioAccessFailure  ReasonCode = 1505
	CodeRadioLinkFailure    ReasonCode = 1506
	CodeRadioLinkLost       ReasonCode = 1507
	CodeRadioUplinkFailure  ReasonCode = 1508
	CodeRadioSetupFailure   ReasonCode = 1509
	CodeRadioReleaseNormal  ReasonCode = 1510
	CodeRadioReleaseAbnormal ReasonCode = 1511
	CodeAccessClassBlocked  ReasonCode = 1512
	CodeNetworkDetach       ReasonCode = 1513

	// Service-level conditions.
	CodeMaxCallsReached          ReasonCode = 1403
	CodeRemoteCallDecline        ReasonCode = 1404
	CodeDataLimitReached         ReasonCode = 1405
	CodeDataDisabled             ReasonCode = 1406
	CodeWifiLost                 ReasonCode = 1407
	CodeEmergencyTempFailure     ReasonCode = 1600
	CodeEmergencyPermFailure     ReasonCode = 1601
	CodeIMEINotAccepted          ReasonCode = 1602
	CodeUnobtainableNumber       ReasonCode = 1603
	CodeSIPAlternateEmergencyCall ReasonCode = 1604
)

// ReasonInfo carries the code and the free-text message reported by the
// session layer for a failed or terminated operation.
type ReasonInfo struct {
	Code    ReasonCode
	Message string
}

func (r ReasonInfo) String() string {
	if r.Message == "" {
		return fmt.Sprintf("reason(%d)", int(r.Code))
	}
	return fmt.Sprintf("reason(%d %q)", int(r.Code), r.Message)
}
