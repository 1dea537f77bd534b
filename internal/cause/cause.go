// Package cause maps session layer reason codes onto the disconnect
// cause vocabulary reported to upper layers and recorded in CDRs.
package cause

// DisconnectCause is the user-facing classification of why a call
// ended or failed.
type DisconnectCause int

const (
	NotDisconnected DisconnectCause = iota
	IncomingMissed
	IncomingRejected
	Normal
	Local
	Busy
	Congestion
	InvalidNumber
	NumberUnreachable
	UnobtainableNumber
	ServerError
	ServerUnreachable
	OutOfService
	TimedOut
	PowerOff
	LowBattery
	DialLowBattery
	CallBarred
	FDNBlocked
	IMEINotAccepted
	AnsweredElsewhere
	CallPulled
	MaximumCallsReached
	DataDisabled
	DataLimitReached
	WifiLost
	AccessBlocked
	EmergencyTempFailure
	EmergencyPermFailure
	DialModifiedToUSSD
	DialModifiedToSS
	DialModifiedToDial
	DialModifiedToDialVideo
	DialVideoModifiedToDial
	DialVideoModifiedToDialVideo
	DialVideoModifiedToSS
	DialVideoModifiedToUSSD
	MergedSuccessfully
	AlternateEmergencyCall
	ErrorUnspecified
)

var causeNames = map[DisconnectCause]string{
	NotDisconnected:              "not-disconnected",
	IncomingMissed:               "incoming-missed",
	IncomingRejected:             "incoming-rejected",
	Normal:                       "normal",
	Local:                        "local",
	Busy:                         "busy",
	Congestion:                   "congestion",
	InvalidNumber:                "invalid-number",
	NumberUnreachable:            "number-unreachable",
	UnobtainableNumber:           "unobtainable-number",
	ServerError:                  "server-error",
	ServerUnreachable:            "server-unreachable",
	OutOfService:                 "out-of-service",
	TimedOut:                     "timed-out",
	PowerOff:                     "power-off",
	LowBattery:                   "low-battery",
	DialLowBattery:               "dial-low-battery",
	CallBarred:                   "call-barred",
	FDNBlocked:                   "fdn-blocked",
	IMEINotAccepted:              "imei-not-accepted",
	AnsweredElsewhere:            "answered-elsewhere",
	CallPulled:                   "call-pulled",
	MaximumCallsReached:          "maximum-calls-reached",
	DataDisabled:                 "data-disabled",
	DataLimitReached:             "data-limit-reached",
	WifiLost:                     "wifi-lost",
	AccessBlocked:                "access-blocked",
	EmergencyTempFailure:         "emergency-temp-failure",
	EmergencyPermFailure:         "emergency-perm-failure",
	DialModifiedToUSSD:           "dial-modified-to-ussd",
	DialModifiedToSS:             "dial-modified-to-ss",
	DialModifiedToDial:           "dial-modified-to-dial",
	DialModifiedToDialVideo:      "dial-modified-to-dial-video",
	DialVideoModifiedToDial:      "dial-video-modified-to-dial",
	DialVideoModifiedToDialVideo: "dial-video-modified-to-dial-video",
	DialVideoModifiedToSS:        "dial-video-modified-to-ss",
	DialVideoModifiedToUSSD:      "dial-video-modified-to-ussd",
	MergedSuccessfully:           "merged-successfully",
	AlternateEmergencyCall:       "alternate-emergency-call",
	ErrorUnspecified:             "error-unspecified",
}

func (c DisconnectCause) String() string {
	if s, ok := causeNames[c]; ok {
		return s
	}
	return "unknown"
}
