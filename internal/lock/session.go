package lock

import "permit-engine/internal/model"

type declineKey struct {
	caseID   string
	category model.ExamCategory
	trigger  model.PromptTrigger
}

// Session remembers which lock prompts were declined while a case list is on
// screen. Create one per view and Reset it when the operator navigates away;
// a fresh session lets a declined prompt appear again. A Session is not safe
// for concurrent use.
type Session struct {
	declined map[declineKey]struct{}
}

func NewSession() *Session {
	return &Session{declined: make(map[declineKey]struct{})}
}

func (s *Session) Declined(caseID string, c model.ExamCategory, t model.PromptTrigger) bool {
	_, ok := s.declined[declineKey{caseID, c, t}]
	return ok
}

func (s *Session) Decline(caseID string, c model.ExamCategory, t model.PromptTrigger) {
	s.declined[declineKey{caseID, c, t}] = struct{}{}
}

func (s *Session) Reset() {
	clear(s.declined)
}

// Export returns the declined flags recorded for one case.
func (s *Session) Export(caseID string) model.SessionState {
	st := model.SessionState{
		DeclinedSuccess: []model.ExamCategory{},
		DeclinedFailure: []model.ExamCategory{},
	}
	for _, c := range model.Categories {
		if s.Declined(caseID, c, model.TriggerSuccess) {
			st.DeclinedSuccess = append(st.DeclinedSuccess, c)
		}
		if s.Declined(caseID, c, model.TriggerFailure) {
			st.DeclinedFailure = append(st.DeclinedFailure, c)
		}
	}
	return st
}

// Import merges flags previously produced by Export. Unknown categories are
// ignored.
func (s *Session) Import(caseID string, st model.SessionState) {
	for _, c := range st.DeclinedSuccess {
		if c.Valid() {
			s.Decline(caseID, c, model.TriggerSuccess)
		}
	}
	for _, c := range st.DeclinedFailure {
		if c.Valid() {
			s.Decline(caseID, c, model.TriggerFailure)
		}
	}
}
