// Package export serializes flows into a portable, versioned JSON envelope
// and imports such envelopes back. Imported flows always get fresh
// identities so an import can never collide with or overwrite existing data.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webreplay/backend/internal/models"
)

// FormatVersion is the current envelope version. Import accepts only
// versions it knows how to read.
const FormatVersion = 1

type Envelope struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Flow       *FlowExport  `json:"flow,omitempty"`
	Flows      []FlowExport `json:"flows,omitempty"`
}

// FlowExport is a flow stripped of server-side identity: no ids, no owner,
// no timestamps. Those are regenerated at import time.
type FlowExport struct {
	Name           string                `json:"name"`
	Description    string                `json:"description,omitempty"`
	StartURL       string                `json:"start_url"`
	CronExpression string                `json:"cron_expression,omitempty"`
	Steps          []models.RecordedStep `json:"steps"`
}

// ExportFlow serializes a single flow.
func ExportFlow(flow *models.Flow) ([]byte, error) {
	fe, err := toExport(flow)
	if err != nil {
		return nil, err
	}
	env := Envelope{Version: FormatVersion, ExportedAt: time.Now().UTC(), Flow: &fe}
	return json.MarshalIndent(env, "", "  ")
}

// ExportFlows serializes a batch of flows into one envelope.
func ExportFlows(flows []models.Flow) ([]byte, error) {
	env := Envelope{Version: FormatVersion, ExportedAt: time.Now().UTC()}
	for i := range flows {
		fe, err := toExport(&flows[i])
		if err != nil {
			return nil, err
		}
		env.Flows = append(env.Flows, fe)
	}
	return json.MarshalIndent(env, "", "  ")
}

// Import parses and validates an envelope and returns flows ready to be
// persisted. Every flow and step receives a newly generated id; nothing from
// the envelope's identity survives. Validation runs before any flow is
// built, so a malformed envelope imports nothing at all.
func Import(data []byte, userID uint) ([]models.Flow, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid export file: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %d", env.Version)
	}

	exports := env.Flows
	if env.Flow != nil {
		exports = append(exports, *env.Flow)
	}
	if len(exports) == 0 {
		return nil, fmt.Errorf("export file contains no flows")
	}

	for i := range exports {
		if err := validate(&exports[i]); err != nil {
			return nil, fmt.Errorf("flow %d (%q): %w", i+1, exports[i].Name, err)
		}
	}

	now := time.Now()
	flows := make([]models.Flow, 0, len(exports))
	for i := range exports {
		fe := &exports[i]
		for j := range fe.Steps {
			fe.Steps[j].ID = uuid.New().String()
		}
		flow := models.Flow{
			ID:             uuid.New().String(),
			Name:           fe.Name,
			Description:    fe.Description,
			StartURL:       fe.StartURL,
			CronExpression: fe.CronExpression,
			UserID:         userID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := flow.SetSteps(fe.Steps); err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

func toExport(flow *models.Flow) (FlowExport, error) {
	steps, err := flow.GetSteps()
	if err != nil {
		return FlowExport{}, fmt.Errorf("flow %s has malformed steps: %w", flow.ID, err)
	}
	if steps == nil {
		steps = []models.RecordedStep{}
	}
	return FlowExport{
		Name:           flow.Name,
		Description:    flow.Description,
		StartURL:       flow.StartURL,
		CronExpression: flow.CronExpression,
		Steps:          steps,
	}, nil
}

var validStepTypes = map[models.StepType]bool{
	models.StepClick:      true,
	models.StepInput:      true,
	models.StepSelect:     true,
	models.StepScroll:     true,
	models.StepNavigation: true,
	models.StepKeypress:   true,
	models.StepWait:       true,
}

func validate(fe *FlowExport) error {
	if fe.Name == "" {
		return fmt.Errorf("missing name")
	}
	if fe.StartURL == "" {
		return fmt.Errorf("missing start URL")
	}
	for i := range fe.Steps {
		step := &fe.Steps[i]
		if !validStepTypes[step.Type] {
			return fmt.Errorf("step %d has unknown type %q", i+1, step.Type)
		}
		if step.Type == models.StepNavigation && step.Value == "" && step.URL == "" {
			return fmt.Errorf("step %d is a navigation without a URL", i+1)
		}
	}
	return nil
}
