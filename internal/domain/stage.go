package domain

import (
	"database/sql/driver"
	"fmt"
)

// Stage is a position in the production pipeline. Stages are strictly ordered
// and the ordinal value is the only basis for advancing or reverting.
type Stage int

const (
	StageAssigned Stage = iota
	StageDesign
	StageLandingDev
	StageClientApprovalLanding
	StageFullDev
	StageClientApprovalFinal
	StageDeployment
	StageSEOGBPOngoing
	StageCompleted
)

// StageInvalid marks a stored stage name that is not part of the pipeline
const StageInvalid Stage = -1

var stageNames = [...]string{
	StageAssigned:              "assigned",
	StageDesign:                "design",
	StageLandingDev:            "landing_dev",
	StageClientApprovalLanding: "client_approval_landing",
	StageFullDev:               "full_dev",
	StageClientApprovalFinal:   "client_approval_final",
	StageDeployment:            "deployment",
	StageSEOGBPOngoing:         "seo_gbp_ongoing",
	StageCompleted:             "completed",
}

var stageDisplayNames = [...]string{
	StageAssigned:              "Assigned",
	StageDesign:                "Design",
	StageLandingDev:            "Landing Page Development",
	StageClientApprovalLanding: "Client Approval (Landing)",
	StageFullDev:               "Full Website Development",
	StageClientApprovalFinal:   "Client Approval (Final)",
	StageDeployment:            "Deployment",
	StageSEOGBPOngoing:         "SEO & GBP Ongoing",
	StageCompleted:             "Completed",
}

var stageIndex = func() map[string]Stage {
	idx := make(map[string]Stage, len(stageNames))
	for i, name := range stageNames {
		idx[name] = Stage(i)
	}
	return idx
}()

// Stages returns the full pipeline in order
func Stages() []Stage {
	stages := make([]Stage, len(stageNames))
	for i := range stageNames {
		stages[i] = Stage(i)
	}
	return stages
}

// FirstStage and FinalStage bound the pipeline
const (
	FirstStage = StageAssigned
	FinalStage = StageCompleted
)

// ParseStage looks up a stage by its stored name
func ParseStage(name string) (Stage, error) {
	if s, ok := stageIndex[name]; ok {
		return s, nil
	}
	return StageInvalid, fmt.Errorf("unknown stage %q", name)
}

// Valid reports whether s is part of the pipeline
func (s Stage) Valid() bool {
	return s >= FirstStage && s <= FinalStage
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// DisplayName returns the human-readable stage label
func (s Stage) DisplayName() string {
	if !s.Valid() {
		return s.String()
	}
	return stageDisplayNames[s]
}

// Next returns the following stage. ok is false on the final stage.
func (s Stage) Next() (next Stage, ok bool) {
	if !s.Valid() || s == FinalStage {
		return s, false
	}
	return s + 1, true
}

// Prev returns the preceding stage. ok is false on the first stage.
func (s Stage) Prev() (prev Stage, ok bool) {
	if !s.Valid() || s == FirstStage {
		return s, false
	}
	return s - 1, true
}

// Value stores the stage by name
func (s Stage) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store invalid stage %d", int(s))
	}
	return stageNames[s], nil
}

// Scan reads a stage name. Unknown names scan to StageInvalid so the row can
// still be loaded and rejected by the state machine.
func (s *Stage) Scan(value interface{}) error {
	var name string
	switch v := value.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	case nil:
		*s = StageInvalid
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Stage", value)
	}
	parsed, err := ParseStage(name)
	if err != nil {
		*s = StageInvalid
		return nil
	}
	*s = parsed
	return nil
}

// MarshalText encodes the stage name for JSON and cache payloads
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot encode invalid stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText decodes a stage name
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
