package player

import "strings"

// FailureKind classifies a playback failure for diagnostics. Classification
// does not change retry policy.
type FailureKind int

const (
	FailureOther FailureKind = iota
	FailureAuthentication
	FailureContentUnavailable
	FailureUnsupportedFeature
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuthentication:
		return "authentication"
	case FailureContentUnavailable:
		return "content_unavailable"
	case FailureUnsupportedFeature:
		return "unsupported_feature"
	default:
		return "other"
	}
}

// ClassifyFailure inspects a failure description and buckets it. Patterns
// follow the error strings the Home Assistant integrations emit.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "unauthorized"):
		return FailureAuthentication
	case strings.Contains(msg, "token") && (strings.Contains(msg, "expired") || strings.Contains(msg, "invalid")):
		return FailureAuthentication
	case strings.Contains(msg, "not found") || strings.Contains(msg, "unavailable"):
		return FailureContentUnavailable
	case strings.Contains(msg, "not supported") || strings.Contains(msg, "unsupported") ||
		strings.Contains(msg, "not implemented"):
		return FailureUnsupportedFeature
	default:
		return FailureOther
	}
}
