package policy

import (
	"fmt"
	"time"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	usecaseErrors "github.com/johnquangdev/meeting-colleague/internal/usecase/errors"
)

// Operation is what a caller intends to do with a data class
type Operation string

const (
	OperationStore   Operation = "store"
	OperationProcess Operation = "process"
	OperationShare   Operation = "share"
	OperationExport  Operation = "export"
	OperationDelete  Operation = "delete"
)

// Request asks whether an operation on meeting data is permitted
type Request struct {
	MeetingID    string
	DataClass    entities.DataClass
	Operation    Operation
	TargetRegion entities.Region // empty means the consented residency
}

// Decision is the outcome of a policy evaluation
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Err returns nil for an allowed decision and an ErrPolicyDenied wrap otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", usecaseErrors.ErrPolicyDenied, d.Reason)
}

// Evaluate decides a request against the meeting's consent. consent may be nil.
func Evaluate(consent *entities.Consent, req Request, now time.Time) Decision {
	if req.Operation == OperationDelete {
		return allow("deletion is always permitted")
	}

	if consent == nil {
		if req.DataClass.IsRegulated() {
			return deny(fmt.Sprintf("no consent recorded for %s data", req.DataClass))
		}
		return allow(fmt.Sprintf("%s data is not regulated", req.DataClass))
	}

	if !consent.Allows(req.DataClass) {
		return deny(fmt.Sprintf("%s data is outside the %s consent scope", req.DataClass, consent.Profile))
	}

	if !regionAllowed(consent.DataResidency, req.TargetRegion) {
		return deny(fmt.Sprintf("%s consent requires %s residency, target is %s", consent.Profile, consent.DataResidency, req.TargetRegion))
	}

	if !now.Before(consent.ExpiresAt()) {
		return deny(fmt.Sprintf("retention period of %d days ended %s", consent.RetentionDays, consent.ExpiresAt().Format(time.RFC3339)))
	}

	return allow(fmt.Sprintf("%s %s permitted by %s consent", req.Operation, req.DataClass, consent.Profile))
}

func regionAllowed(residency, target entities.Region) bool {
	if target == "" || residency == entities.RegionGlobal {
		return true
	}
	return residency == target
}

// BuildConsent maps a profile to its consent record using the fixed profile table
func BuildConsent(meetingID string, profile entities.ConsentProfile, acceptedAt time.Time) (*entities.Consent, error) {
	if meetingID == "" {
		return nil, entities.ErrInvalidMeetingID
	}
	cfg, ok := entities.RetentionConfigFor(profile)
	if !ok {
		return nil, fmt.Errorf("%w: %q", usecaseErrors.ErrUnknownProfile, profile)
	}
	return &entities.Consent{
		MeetingID:     meetingID,
		Profile:       cfg.Profile,
		Scope:         cfg.Scope,
		RetentionDays: cfg.RetentionDays,
		DataResidency: cfg.DataResidency,
		AcceptedAt:    acceptedAt.UTC(),
	}, nil
}
