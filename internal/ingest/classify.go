// Package ingest turns raw portal result records into typed attempts.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"permit-engine/internal/model"
)

var recordValidate = validator.New()

// Reasons a record lands in the unclassified bucket.
const (
	ReasonInvalidRecord   = "invalid_record"
	ReasonOtherCase       = "other_case"
	ReasonUnknownExamType = "unknown_exam_type"
	ReasonUnknownResult   = "unknown_result"
	ReasonInvalidDate     = "invalid_date"
	ReasonOverCap         = "over_cap"
)

type Unclassified struct {
	Record model.ResultRecord `json:"record"`
	Reason string             `json:"reason"`
	Detail string             `json:"detail,omitempty"`
}

// Classified is the typed view of one case's result records.
type Classified struct {
	Attempts     map[model.ExamCategory][]model.Attempt `json:"attempts"`
	Unclassified []Unclassified                         `json:"unclassified"`
}

var examTypeKeywords = []struct {
	keyword  string
	category model.ExamCategory
}{
	{"creneau", model.CategoryCreneaux},
	{"code", model.CategoryCodeConduite},
	{"ville", model.CategoryTourVille},
}

// ClassifyExamType maps a free-form exam type onto a category by
// case-insensitive substring. Keywords are tried in category order.
func ClassifyExamType(examType string) (model.ExamCategory, bool) {
	norm := fold(examType)
	for _, k := range examTypeKeywords {
		if strings.Contains(norm, k.keyword) {
			return k.category, true
		}
	}
	return "", false
}

var resultAliases = map[string]model.Result{
	"reussi":  model.ResultReussi,
	"valide":  model.ResultReussi,
	"admis":   model.ResultReussi,
	"echoue":  model.ResultEchoue,
	"echec":   model.ResultEchoue,
	"ajourne": model.ResultEchoue,
	"absent":  model.ResultAbsent,
}

func ParseResult(status string) (model.Result, bool) {
	r, ok := resultAliases[fold(status)]
	return r, ok
}

var accentFolder = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a",
	"î", "i", "ï", "i",
	"ô", "o", "û", "u", "ù", "u", "ç", "c",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Classify sorts the records of caseID into category attempt lists, oldest
// first, at most model.MaxAttempts per category. Everything else is kept in
// the unclassified bucket with the reason it was set aside.
func Classify(caseID string, records []model.ResultRecord) Classified {
	out := Classified{
		Attempts:     make(map[model.ExamCategory][]model.Attempt, len(model.Categories)),
		Unclassified: []Unclassified{},
	}
	for _, c := range model.Categories {
		out.Attempts[c] = []model.Attempt{}
	}
	reject := func(r model.ResultRecord, reason, detail string) {
		out.Unclassified = append(out.Unclassified, Unclassified{Record: r, Reason: reason, Detail: detail})
	}

	type dated struct {
		attempt model.Attempt
		record  model.ResultRecord
	}
	grouped := make(map[model.ExamCategory][]dated, len(model.Categories))

	for _, r := range records {
		if err := recordValidate.Struct(r); err != nil {
			reject(r, ReasonInvalidRecord, err.Error())
			continue
		}
		if r.CaseID != caseID {
			reject(r, ReasonOtherCase, fmt.Sprintf("belongs to case %s", r.CaseID))
			continue
		}
		cat, ok := ClassifyExamType(r.ExamType)
		if !ok {
			reject(r, ReasonUnknownExamType, r.ExamType)
			continue
		}
		res, ok := ParseResult(r.Status)
		if !ok {
			reject(r, ReasonUnknownResult, r.Status)
			continue
		}
		when, ok := ParseDate(r.Date)
		if !ok {
			reject(r, ReasonInvalidDate, r.Date)
			continue
		}
		grouped[cat] = append(grouped[cat], dated{
			attempt: model.Attempt{Result: res, Date: when, Note: r.Comment},
			record:  r,
		})
	}

	for _, cat := range model.Categories {
		list := grouped[cat]
		sort.SliceStable(list, func(i, j int) bool { return list[i].attempt.Date.Before(list[j].attempt.Date) })
		for i, d := range list {
			if i >= model.MaxAttempts {
				reject(d.record, ReasonOverCap, string(cat))
				continue
			}
			out.Attempts[cat] = append(out.Attempts[cat], d.attempt)
		}
	}
	return out
}
