package entities

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// ConsentProfile is the named consent tier chosen for a meeting
type ConsentProfile string

const (
	ProfileBas     ConsentProfile = "bas"
	ProfilePlus    ConsentProfile = "plus"
	ProfileJuridik ConsentProfile = "juridik"
)

// DataClass is a category of meeting data governed by consent
type DataClass string

const (
	DataClassRecording   DataClass = "recording"
	DataClassTranscript  DataClass = "transcript"
	DataClassAction      DataClass = "action"
	DataClassDecision    DataClass = "decision"
	DataClassSummary     DataClass = "summary"
	DataClassStakeholder DataClass = "stakeholder"
	DataClassAudit       DataClass = "audit"
)

// IsRegulated reports whether the class may only be touched under an explicit consent
func (c DataClass) IsRegulated() bool {
	switch c {
	case DataClassRecording, DataClassTranscript, DataClassAction:
		return true
	}
	return false
}

// Region is where meeting data may be stored or processed
type Region string

const (
	RegionEU       Region = "eu"
	RegionCustomer Region = "customer"
	RegionGlobal   Region = "global"
)

// RetentionConfig is what a consent profile fixes for a meeting
type RetentionConfig struct {
	Profile       ConsentProfile `json:"profile"`
	Scope         []DataClass    `json:"scope"`
	RetentionDays int            `json:"retentionDays"`
	DataResidency Region         `json:"dataResidency"`
}

// RetentionWindow returns the retention period as a duration
func (c RetentionConfig) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

var baseScope = []DataClass{DataClassTranscript, DataClassAction, DataClassDecision, DataClassSummary}

// profileTable is the only place retention defaults are defined.
var profileTable = map[ConsentProfile]RetentionConfig{
	ProfileBas: {
		Profile:       ProfileBas,
		Scope:         baseScope,
		RetentionDays: 30,
		DataResidency: RegionEU,
	},
	ProfilePlus: {
		Profile:       ProfilePlus,
		Scope:         append(slices.Clone(baseScope), DataClassRecording, DataClassStakeholder),
		RetentionDays: 90,
		DataResidency: RegionEU,
	},
	ProfileJuridik: {
		Profile:       ProfileJuridik,
		Scope:         append(slices.Clone(baseScope), DataClassRecording, DataClassStakeholder, DataClassAudit),
		RetentionDays: 365,
		DataResidency: RegionCustomer,
	},
}

// RetentionConfigFor resolves a profile. The returned scope is a copy.
func RetentionConfigFor(profile ConsentProfile) (RetentionConfig, bool) {
	cfg, ok := profileTable[profile]
	if !ok {
		return RetentionConfig{}, false
	}
	cfg.Scope = slices.Clone(cfg.Scope)
	return cfg, true
}

// Profiles lists the known consent profiles
func Profiles() []ConsentProfile {
	return []ConsentProfile{ProfileBas, ProfilePlus, ProfileJuridik}
}

// Consent is the one active consent record of a meeting. A new record replaces the old one.
type Consent struct {
	MeetingID     string                         `json:"meetingId" gorm:"type:varchar(64);primaryKey"`
	Profile       ConsentProfile                 `json:"profile" gorm:"type:varchar(20);not null"`
	Scope         datatypes.JSONSlice[DataClass] `json:"scope"`
	RetentionDays int                            `json:"retentionDays" gorm:"not null"`
	DataResidency Region                         `json:"dataResidency" gorm:"type:varchar(20);not null"`
	AcceptedAt    time.Time                      `json:"acceptedAt" gorm:"not null"`
	UpdatedAt     time.Time                      `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Allows reports whether the data class is inside the consented scope
func (c *Consent) Allows(class DataClass) bool {
	return slices.Contains(c.Scope, class)
}

// ExpiresAt is the retention ceiling of the consent
func (c *Consent) ExpiresAt() time.Time {
	return c.AcceptedAt.Add(time.Duration(c.RetentionDays) * 24 * time.Hour)
}

// TableName specifies the table name for GORM
func (Consent) TableName() string {
	return "consents"
}
