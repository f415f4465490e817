package model

import json "github.com/goccy/go-json"

type CalculationRequest struct {
	CaseID                  string                  `json:"case_id" validate:"required"`
	Situation               Situation               `json:"situation"`
	CalculationInstructions CalculationInstructions `json:"calculation_instructions"`
}

type CalculationInstructions struct {
	Mutations []Mutation `json:"mutations" validate:"required,min=1,dive"`
}

type Mutation struct {
	MutationID             string          `json:"mutation_id" validate:"required"`
	MutationDefinitionName string          `json:"mutation_definition_name" validate:"required"`
	ActualAt               string          `json:"actual_at"`
	MutationProperties     json.RawMessage `json:"mutation_properties"`

	// Privileged is granted by the transport layer, never read from the body.
	Privileged bool `json:"-"`
}

type ProgressRequest struct {
	CaseID    string     `json:"case_id" validate:"required"`
	Circuit   *Circuit   `json:"circuit"`
	Documents []Document `json:"documents"`
	// Vetoed carries an external blocking decision; the engine never derives it.
	Vetoed bool `json:"vetoed,omitempty"`
}

type CaseRef struct {
	CaseID      string `json:"case_id" validate:"required"`
	RequestType string `json:"request_type"`
}

type BatchProgressRequest struct {
	Cases []CaseRef `json:"cases" validate:"required,dive"`
}
