// Package attempts derives exam statuses from recorded attempts.
package attempts

import "permit-engine/internal/model"

// ComputeCategoryStatus derives the status of one exam category.
//
// A legacy override other than non_saisi wins outright; records created
// before per-attempt tracking only carry that field. Otherwise a success at
// any sitting is terminal, three sittings without success fail the category,
// and an unfinished trajectory reports its latest outcome.
func ComputeCategoryStatus(attempts []model.Attempt, legacyOverride model.Status) model.Status {
	if legacyOverride != "" && legacyOverride != model.StatusNonSaisi {
		return legacyOverride
	}
	if len(attempts) == 0 {
		return model.StatusNonSaisi
	}
	if HasSuccess(attempts) {
		return model.StatusReussi
	}
	if len(attempts) >= model.MaxAttempts {
		return model.StatusEchoue
	}
	return model.Status(attempts[len(attempts)-1].Result)
}

// ComputeCaseVerdict aggregates the three category statuses. Precedence:
// all reussi, then any echoue, then any absent, else non_saisi.
func ComputeCaseVerdict(creneaux, codeConduite, tourVille model.Status) model.Status {
	all := [3]model.Status{creneaux, codeConduite, tourVille}

	if creneaux == model.StatusReussi && codeConduite == model.StatusReussi && tourVille == model.StatusReussi {
		return model.StatusReussi
	}
	for _, s := range all {
		if s == model.StatusEchoue {
			return model.StatusEchoue
		}
	}
	for _, s := range all {
		if s == model.StatusAbsent {
			return model.StatusAbsent
		}
	}
	return model.StatusNonSaisi
}

// VerdictOf computes the verdict from a per-category status map. Missing
// categories count as non_saisi.
func VerdictOf(statuses map[model.ExamCategory]model.Status) model.Status {
	get := func(c model.ExamCategory) model.Status {
		if s, ok := statuses[c]; ok && s != "" {
			return s
		}
		return model.StatusNonSaisi
	}
	return ComputeCaseVerdict(
		get(model.CategoryCreneaux),
		get(model.CategoryCodeConduite),
		get(model.CategoryTourVille),
	)
}

// HasSuccess reports whether any attempt was passed.
func HasSuccess(attempts []model.Attempt) bool {
	for _, a := range attempts {
		if a.Result == model.ResultReussi {
			return true
		}
	}
	return false
}

// Exhausted reports whether every sitting has been used without success.
func Exhausted(attempts []model.Attempt) bool {
	return len(attempts) == model.MaxAttempts && !HasSuccess(attempts)
}
