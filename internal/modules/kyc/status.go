// README: KYC status derivation: provider outcome per task and the overall aggregate.
package kyc

import (
	"encoding/json"
	"strings"
)

// ComputeOverall evaluates, in order: verified, failed, pending, not_started.
func ComputeOverall(p Profile) OverallStatus {
	identity := p.PAN.Status == DocVerified || p.Aadhaar.Status == DocVerified
	license := p.DrivingLicense.Status == DocNotProvided || p.DrivingLicense.Status == DocVerified
	if identity && p.Face.Status == DocVerified && license {
		return OverallVerified
	}

	docs := []DocStatus{p.PAN.Status, p.Aadhaar.Status, p.DrivingLicense.Status, p.Face.Status}
	for _, s := range docs {
		if s == DocFailed {
			return OverallFailed
		}
	}
	for _, s := range docs {
		if s == DocPending {
			return OverallPending
		}
	}
	return OverallNotStarted
}

func isCompleted(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success", "succeeded":
		return true
	}
	return false
}

func isFailed(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "failure", "error":
		return true
	}
	return false
}

// outcome maps one provider callback to a document status. Face checks only verify
// when the provider reports the selfie as live.
func outcome(t Type, status string, result json.RawMessage) DocStatus {
	switch {
	case isFailed(status):
		return DocFailed
	case !isCompleted(status):
		return DocPending
	case t != TypeFace:
		return DocVerified
	}
	if isLive(result) {
		return DocVerified
	}
	return DocFailed
}

func isLive(result json.RawMessage) bool {
	if len(result) == 0 {
		return false
	}
	var r struct {
		IsLive       *bool `json:"is_live"`
		SourceOutput struct {
			IsLive *bool `json:"is_live"`
		} `json:"source_output"`
	}
	if err := json.Unmarshal(result, &r); err != nil {
		return false
	}
	if r.IsLive != nil {
		return *r.IsLive
	}
	return r.SourceOutput.IsLive != nil && *r.SourceOutput.IsLive
}
