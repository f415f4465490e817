package attempts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"permit-engine/internal/model"
)

func seq(results ...model.Result) []model.Attempt {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]model.Attempt, len(results))
	for i, r := range results {
		out[i] = model.Attempt{Result: r, Date: base.AddDate(0, 0, 7*i)}
	}
	return out
}

const (
	R = model.ResultReussi
	E = model.ResultEchoue
	A = model.ResultAbsent
)

func TestComputeCategoryStatus(t *testing.T) {
	tests := []struct {
		name     string
		attempts []model.Attempt
		legacy   model.Status
		want     model.Status
	}{
		{"empty", nil, "", model.StatusNonSaisi},
		{"empty with non_saisi legacy", nil, model.StatusNonSaisi, model.StatusNonSaisi},
		{"single success", seq(R), "", model.StatusReussi},
		{"success after failure", seq(E, R), "", model.StatusReussi},
		{"success first then failures", seq(R, E, A), "", model.StatusReussi},
		{"success on third", seq(A, E, R), "", model.StatusReussi},
		{"three without success", seq(E, A, E), "", model.StatusEchoue},
		{"three absences", seq(A, A, A), "", model.StatusEchoue},
		{"single failure", seq(E), "", model.StatusEchoue},
		{"single absence", seq(A), "", model.StatusAbsent},
		{"latest outcome wins", seq(A, E), "", model.StatusEchoue},
		{"latest absence", seq(E, A), "", model.StatusAbsent},
		{"legacy override wins", seq(E), model.StatusReussi, model.StatusReussi},
		{"legacy override on empty", nil, model.StatusAbsent, model.StatusAbsent},
		{"non_saisi legacy ignored", seq(R), model.StatusNonSaisi, model.StatusReussi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeCategoryStatus(tt.attempts, tt.legacy))
		})
	}
}

func TestComputeCaseVerdictPrecedence(t *testing.T) {
	const (
		ok = model.StatusReussi
		ko = model.StatusEchoue
		ab = model.StatusAbsent
		ns = model.StatusNonSaisi
	)
	tests := []struct {
		a, b, c model.Status
		want    model.Status
	}{
		{ok, ok, ok, ok},
		{ok, ok, ko, ko},
		{ok, ok, ab, ab},
		{ns, ns, ns, ns},
		{ab, ko, ns, ko},
		{ko, ab, ab, ko},
		{ab, ns, ok, ab},
		{ok, ns, ok, ns},
		{ns, ok, ko, ko},
	}

	for _, tt := range tests {
		got := ComputeCaseVerdict(tt.a, tt.b, tt.c)
		assert.Equal(t, tt.want, got, "verdict(%s, %s, %s)", tt.a, tt.b, tt.c)
	}
}

func TestPureFunctionsAreIdempotent(t *testing.T) {
	in := seq(E, A)
	snapshot := append([]model.Attempt(nil), in...)

	first := ComputeCategoryStatus(in, "")
	second := ComputeCategoryStatus(in, "")
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, in)

	v1 := ComputeCaseVerdict(first, model.StatusReussi, model.StatusAbsent)
	v2 := ComputeCaseVerdict(second, model.StatusReussi, model.StatusAbsent)
	assert.Equal(t, v1, v2)
}

func TestVerdictOfMissingCategories(t *testing.T) {
	assert.Equal(t, model.StatusNonSaisi, VerdictOf(nil))
	assert.Equal(t, model.StatusAbsent, VerdictOf(map[model.ExamCategory]model.Status{
		model.CategoryTourVille: model.StatusAbsent,
	}))
	assert.Equal(t, model.StatusReussi, VerdictOf(map[model.ExamCategory]model.Status{
		model.CategoryCreneaux:     model.StatusReussi,
		model.CategoryCodeConduite: model.StatusReussi,
		model.CategoryTourVille:    model.StatusReussi,
	}))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Validé", Describe(model.StatusReussi).Label)
	assert.Equal(t, "Échoué", Describe(model.StatusEchoue).Label)
	assert.Equal(t, "Absent", Describe(model.StatusAbsent).Label)
	assert.Equal(t, "Non saisi", Describe(model.StatusNonSaisi).Label)
	assert.Equal(t, model.StatusNonSaisi, Describe("garbage").Status)
}

func TestExhausted(t *testing.T) {
	assert.False(t, Exhausted(seq(E, E)))
	assert.True(t, Exhausted(seq(E, A, E)))
	assert.False(t, Exhausted(seq(E, E, R)))
}
