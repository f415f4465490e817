package model

type Piece struct {
	PieceID string `json:"piece_id" yaml:"piece_id" validate:"required"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Stage is one step of a circuit. A nil Pieces slice means the definition was
// not populated by the source and must be backfilled; an empty one means the
// stage requires nothing.
type Stage struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty"`
	Label  string  `json:"label" yaml:"label"`
	Order  int     `json:"order,omitempty" yaml:"order,omitempty"`
	Pieces []Piece `json:"pieces" yaml:"pieces"`
}

type Circuit struct {
	ID          string  `json:"id" yaml:"id"`
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
	RequestType string  `json:"request_type,omitempty" yaml:"request_type,omitempty"`
	Stages      []Stage `json:"stages" yaml:"stages"`
}

// NeedsBackfill reports whether the stage or piece definitions are missing.
func (c *Circuit) NeedsBackfill() bool {
	if c == nil {
		return false
	}
	if len(c.Stages) == 0 {
		return true
	}
	for _, s := range c.Stages {
		if s.Pieces == nil {
			return true
		}
	}
	return false
}

type Document struct {
	ID                   string `json:"id"`
	PieceJustificationID string `json:"piece_justification_id,omitempty"`
	TypeDocumentID       string `json:"type_document_id,omitempty"`
	DocumentableID       string `json:"documentable_id"`
	Valide               bool   `json:"valide"`
	ValidatedComment     string `json:"validated_comment,omitempty"`
}

type ProgressStatus string

const (
	ProgressPending    ProgressStatus = "pending"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressBlocked    ProgressStatus = "blocked"
)

type PieceProgress struct {
	PieceID   string   `json:"piece_id"`
	Satisfied bool     `json:"satisfied"`
	MatchedBy string   `json:"matched_by,omitempty"`
	Documents []string `json:"documents,omitempty"`
}

type StageProgress struct {
	Label    string          `json:"label"`
	Complete bool            `json:"complete"`
	Pieces   []PieceProgress `json:"pieces"`
}

type ProgressSummary struct {
	CaseID             string          `json:"case_id"`
	ProgressPercent    int             `json:"progress_percent"`
	CurrentStageLabel  *string         `json:"current_stage_label"`
	DocumentsCount     int             `json:"documents_count"`
	DocumentsValidated int             `json:"documents_validated"`
	Status             ProgressStatus  `json:"status"`
	CompletedStages    int             `json:"completed_stages"`
	TotalStages        int             `json:"total_stages"`
	Stages             []StageProgress `json:"stages,omitempty"`
}

// PendingSummary is the "nothing to show" result used for missing circuits and
// failed fetches.
func PendingSummary(caseID string) ProgressSummary {
	return ProgressSummary{CaseID: caseID, Status: ProgressPending}
}
