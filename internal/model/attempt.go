package model

import "time"

// MaxAttempts is the number of sittings a candidate gets per exam category.
const MaxAttempts = 3

type ExamCategory string

const (
	CategoryCreneaux     ExamCategory = "creneaux"
	CategoryCodeConduite ExamCategory = "codeConduite"
	CategoryTourVille    ExamCategory = "tourVille"
)

// Categories lists the exam categories in prompt precedence order.
var Categories = []ExamCategory{CategoryCreneaux, CategoryCodeConduite, CategoryTourVille}

func (c ExamCategory) Valid() bool {
	switch c {
	case CategoryCreneaux, CategoryCodeConduite, CategoryTourVille:
		return true
	}
	return false
}

// Result is the outcome of a single recorded sitting.
type Result string

const (
	ResultReussi Result = "reussi"
	ResultEchoue Result = "echoue"
	ResultAbsent Result = "absent"
)

func (r Result) Valid() bool {
	return r == ResultReussi || r == ResultEchoue || r == ResultAbsent
}

// Status is the derived state of a category or of a whole case.
type Status string

const (
	StatusNonSaisi Status = "non_saisi"
	StatusReussi   Status = "reussi"
	StatusEchoue   Status = "echoue"
	StatusAbsent   Status = "absent"
)

type Attempt struct {
	Result Result    `json:"result" validate:"required,oneof=reussi echoue absent"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note,omitempty"`
}

// StatusView pairs a status with the label and color shown to operators.
type StatusView struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// ResultRecord is a raw exam result as served by the portal API.
type ResultRecord struct {
	ID       string `json:"id"`
	CaseID   string `json:"case_id" validate:"required"`
	ExamType string `json:"exam_type"`
	Status   string `json:"status" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Comment  string `json:"comment,omitempty"`
}
