// Package lock guards exam attempts behind an operator-confirmed locking
// workflow.
//
// A Coordinator holds the attempts of one case. Whenever a category reaches
// a terminal outcome (a success, or three sittings without one) it opens a
// confirmation prompt; confirming locks every current attempt of the
// category, declining records the refusal in the Session so the prompt is
// not repeated. Only one prompt is open at a time. Locks are tracked per
// attempt index so privileged users can reopen a single attempt.
//
// A Coordinator is not safe for concurrent use.
package lock

import (
	"fmt"
	"slices"

	"permit-engine/internal/attempts"
	"permit-engine/internal/logger"
	"permit-engine/internal/model"
)

type categoryState struct {
	attempts []model.Attempt
	locked   map[int]bool
	legacy   model.Status
	// status is the result of the previous evaluation, used to detect a
	// category that newly became reussi.
	status model.Status
	// successArmed is set on the transition into reussi and cleared once the
	// prompt it raised is answered or the status leaves reussi.
	successArmed bool
	adding       bool
}

type Coordinator struct {
	caseID     string
	session    *Session
	log        *logger.Logger
	categories map[model.ExamCategory]*categoryState
	pending    *model.Prompt
}

func New(caseID string, session *Session, log *logger.Logger) *Coordinator {
	if session == nil {
		session = NewSession()
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Coordinator{
		caseID:     caseID,
		session:    session,
		log:        log.With("case_id", caseID),
		categories: make(map[model.ExamCategory]*categoryState, len(model.Categories)),
	}
	for _, cat := range model.Categories {
		c.categories[cat] = &categoryState{locked: map[int]bool{}, status: model.StatusNonSaisi}
	}
	return c
}

func (c *Coordinator) CaseID() string { return c.caseID }

func (c *Coordinator) state(cat model.ExamCategory) (*categoryState, error) {
	st, ok := c.categories[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	return st, nil
}

// Load installs freshly fetched attempts for a category. Data that is already
// terminal is locked without prompting, so historical records do not ask for
// confirmation again.
func (c *Coordinator) Load(cat model.ExamCategory, list []model.Attempt, legacy model.Status) error {
	st, err := c.state(cat)
	if err != nil {
		return err
	}
	if len(list) > model.MaxAttempts {
		c.log.Warn("Truncating attempts above cap", "category", cat, "count", len(list))
		list = list[:model.MaxAttempts]
	}
	st.attempts = slices.Clone(list)
	st.locked = map[int]bool{}
	st.legacy = legacy
	st.successArmed = false
	st.adding = false
	st.status = attempts.ComputeCategoryStatus(st.attempts, legacy)

	if attempts.HasSuccess(st.attempts) || attempts.Exhausted(st.attempts) {
		for i := range st.attempts {
			st.locked[i] = true
		}
		c.log.Debug("Auto-locked terminal category", "category", cat, "status", st.status)
	}
	if c.pending != nil && c.pending.Category == cat {
		c.pending = nil
	}
	return nil
}

// Restore rebuilds the coordinator from a situation previously produced by
// Snapshot. Locks are taken as given; nothing is auto-locked.
func (c *Coordinator) Restore(sit model.Situation) error {
	c.session.Import(c.caseID, sit.Session)
	for _, cs := range sit.Categories {
		st, err := c.state(cs.Category)
		if err != nil {
			return err
		}
		if len(cs.Attempts) > model.MaxAttempts {
			return fmt.Errorf("%w: %s has %d attempts", ErrAttemptCapReached, cs.Category, len(cs.Attempts))
		}
		for i, a := range cs.Attempts {
			if !a.Result.Valid() {
				return fmt.Errorf("%w: %s attempt %d has %q", ErrInvalidResult, cs.Category, i, a.Result)
			}
		}
		st.attempts = slices.Clone(cs.Attempts)
		st.locked = map[int]bool{}
		for _, idx := range cs.LockedIndices {
			if idx >= 0 && idx < len(st.attempts) {
				st.locked[idx] = true
			}
		}
		st.legacy = cs.LegacyStatus
		st.status = attempts.ComputeCategoryStatus(st.attempts, st.legacy)
		st.successArmed = cs.SuccessArmed && st.status == model.StatusReussi
	}
	c.pending = nil
	if p := sit.PendingPrompt; p != nil && c.qualifies(p.Category, p.Trigger) {
		c.pending = &model.Prompt{Category: p.Category, Trigger: p.Trigger}
	}
	return nil
}

// Status returns the derived status of a category.
func (c *Coordinator) Status(cat model.ExamCategory) model.Status {
	st, err := c.state(cat)
	if err != nil {
		return model.StatusNonSaisi
	}
	return attempts.ComputeCategoryStatus(st.attempts, st.legacy)
}

func (c *Coordinator) Verdict() model.Status {
	return attempts.ComputeCaseVerdict(
		c.Status(model.CategoryCreneaux),
		c.Status(model.CategoryCodeConduite),
		c.Status(model.CategoryTourVille),
	)
}

func (c *Coordinator) Attempts(cat model.ExamCategory) []model.Attempt {
	st, err := c.state(cat)
	if err != nil {
		return nil
	}
	return slices.Clone(st.attempts)
}

func (c *Coordinator) IsLocked(cat model.ExamCategory, idx int) bool {
	st, err := c.state(cat)
	if err != nil {
		return false
	}
	return st.locked[idx]
}

// FullyLocked reports whether every existing attempt of the category is
// locked. A category without attempts is never fully locked.
func (c *Coordinator) FullyLocked(cat model.ExamCategory) bool {
	st, err := c.state(cat)
	if err != nil {
		return false
	}
	return fullyLocked(st)
}

func fullyLocked(st *categoryState) bool {
	if len(st.attempts) == 0 {
		return false
	}
	for i := range st.attempts {
		if !st.locked[i] {
			return false
		}
	}
	return true
}

func (c *Coordinator) LockState(cat model.ExamCategory) model.LockState {
	if c.pending != nil && c.pending.Category == cat {
		if c.pending.Trigger == model.TriggerSuccess {
			return model.LockPendingSuccessConfirmation
		}
		return model.LockPendingFailureConfirmation
	}
	if c.FullyLocked(cat) {
		return model.LockLocked
	}
	return model.LockUnlocked
}

// Pending returns the open prompt, or nil.
func (c *Coordinator) Pending() *model.Prompt {
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

func (c *Coordinator) qualifies(cat model.ExamCategory, trigger model.PromptTrigger) bool {
	st, err := c.state(cat)
	if err != nil || len(st.attempts) == 0 || fullyLocked(st) {
		return false
	}
	if c.session.Declined(c.caseID, cat, trigger) {
		return false
	}
	switch trigger {
	case model.TriggerSuccess:
		return st.successArmed
	case model.TriggerFailure:
		return attempts.Exhausted(st.attempts)
	}
	return false
}

// Recompute re-derives every category status and, if no prompt is open,
// opens the first qualifying one: categories in model.Categories order,
// success before failure. It returns the open prompt, if any.
func (c *Coordinator) Recompute() *model.Prompt {
	for _, cat := range model.Categories {
		st := c.categories[cat]
		next := attempts.ComputeCategoryStatus(st.attempts, st.legacy)
		switch {
		case next == model.StatusReussi && st.status != model.StatusReussi:
			st.successArmed = true
		case next != model.StatusReussi:
			st.successArmed = false
		}
		st.status = next
	}

	if c.pending != nil && !c.qualifies(c.pending.Category, c.pending.Trigger) {
		c.log.Debug("Dropping stale lock prompt", "category", c.pending.Category, "trigger", c.pending.Trigger)
		c.pending = nil
	}
	if c.pending == nil {
	scan:
		for _, cat := range model.Categories {
			for _, trigger := range []model.PromptTrigger{model.TriggerSuccess, model.TriggerFailure} {
				if c.qualifies(cat, trigger) {
					c.pending = &model.Prompt{Category: cat, Trigger: trigger}
					break scan
				}
			}
		}
	}
	return c.Pending()
}

func (c *Coordinator) answer(cat model.ExamCategory) (*categoryState, model.Prompt, error) {
	if c.pending == nil {
		return nil, model.Prompt{}, ErrNoPendingPrompt
	}
	if c.pending.Category != cat {
		return nil, model.Prompt{}, fmt.Errorf("%w: pending %s, got %s", ErrPromptMismatch, c.pending.Category, cat)
	}
	st, err := c.state(cat)
	if err != nil {
		return nil, model.Prompt{}, err
	}
	return st, *c.pending, nil
}

// Confirm accepts the pending prompt for cat: every current attempt of the
// category is locked. The next qualifying prompt, if any, is returned.
func (c *Coordinator) Confirm(cat model.ExamCategory) (*model.Prompt, error) {
	st, p, err := c.answer(cat)
	if err != nil {
		return c.Pending(), err
	}
	for i := range st.attempts {
		st.locked[i] = true
	}
	st.successArmed = false
	c.pending = nil
	c.log.Info("Category locked", "category", cat, "trigger", p.Trigger, "attempts", len(st.attempts))
	return c.Recompute(), nil
}

// Decline dismisses the pending prompt for cat. The refusal is remembered in
// the session so the same prompt does not reappear during this view.
func (c *Coordinator) Decline(cat model.ExamCategory) (*model.Prompt, error) {
	st, p, err := c.answer(cat)
	if err != nil {
		return c.Pending(), err
	}
	c.session.Decline(c.caseID, cat, p.Trigger)
	if p.Trigger == model.TriggerSuccess {
		st.successArmed = false
	}
	c.pending = nil
	c.log.Info("Lock declined", "category", cat, "trigger", p.Trigger)
	return c.Recompute(), nil
}

// BeginAdd reserves the category for one new attempt. It fails while another
// add on the same category has not been committed or cancelled, when the
// category already holds MaxAttempts attempts, or when it is fully locked.
func (c *Coordinator) BeginAdd(cat model.ExamCategory) error {
	st, err := c.state(cat)
	if err != nil {
		return err
	}
	if st.adding {
		return ErrAddInFlight
	}
	if len(st.attempts) >= model.MaxAttempts {
		return ErrAttemptCapReached
	}
	if fullyLocked(st) {
		return ErrAttemptLocked
	}
	st.adding = true
	return nil
}

// CommitAdd appends the attempt reserved by BeginAdd and recomputes. The cap
// and lock checks of BeginAdd are repeated.
func (c *Coordinator) CommitAdd(cat model.ExamCategory, a model.Attempt) (*model.Prompt, error) {
	st, err := c.state(cat)
	if err != nil {
		return c.Pending(), err
	}
	if !st.adding {
		return c.Pending(), ErrNoAddInFlight
	}
	st.adding = false
	if !a.Result.Valid() {
		return c.Pending(), fmt.Errorf("%w: %q", ErrInvalidResult, a.Result)
	}
	if len(st.attempts) >= model.MaxAttempts {
		return c.Pending(), ErrAttemptCapReached
	}
	// A privileged lock may have landed since BeginAdd.
	if fullyLocked(st) {
		return c.Pending(), ErrAttemptLocked
	}
	st.attempts = append(st.attempts, a)
	c.log.Debug("Attempt added", "category", cat, "index", len(st.attempts)-1, "result", a.Result)
	return c.Recompute(), nil
}

// CancelAdd releases a reservation made by BeginAdd.
func (c *Coordinator) CancelAdd(cat model.ExamCategory) {
	if st, err := c.state(cat); err == nil {
		st.adding = false
	}
}

// AddAttempt is BeginAdd followed by CommitAdd.
func (c *Coordinator) AddAttempt(cat model.ExamCategory, a model.Attempt) (*model.Prompt, error) {
	if err := c.BeginAdd(cat); err != nil {
		return c.Pending(), err
	}
	return c.CommitAdd(cat, a)
}

// EditAttempt replaces attempt idx of a category. Locked attempts are
// rejected; unlocked ones stay editable even when their siblings are locked.
func (c *Coordinator) EditAttempt(cat model.ExamCategory, idx int, a model.Attempt) (*model.Prompt, error) {
	st, err := c.state(cat)
	if err != nil {
		return c.Pending(), err
	}
	if idx < 0 || idx >= len(st.attempts) {
		return c.Pending(), fmt.Errorf("%w: %s #%d", ErrAttemptNotFound, cat, idx)
	}
	if st.locked[idx] {
		return c.Pending(), fmt.Errorf("%w: %s #%d", ErrAttemptLocked, cat, idx)
	}
	if !a.Result.Valid() {
		return c.Pending(), fmt.Errorf("%w: %q", ErrInvalidResult, a.Result)
	}
	st.attempts[idx] = a
	return c.Recompute(), nil
}

// SetAttemptLock locks or unlocks a single attempt. Only privileged users may
// toggle locks, and they may do so at any time.
func (c *Coordinator) SetAttemptLock(cat model.ExamCategory, idx int, locked, privileged bool) (*model.Prompt, error) {
	if !privileged {
		return c.Pending(), ErrNotPrivileged
	}
	st, err := c.state(cat)
	if err != nil {
		return c.Pending(), err
	}
	if idx < 0 || idx >= len(st.attempts) {
		return c.Pending(), fmt.Errorf("%w: %s #%d", ErrAttemptNotFound, cat, idx)
	}
	if locked {
		st.locked[idx] = true
	} else {
		delete(st.locked, idx)
	}
	c.log.Info("Attempt lock toggled", "category", cat, "index", idx, "locked", locked)
	return c.Recompute(), nil
}

// ResetSession forgets every declined prompt of the shared session.
func (c *Coordinator) ResetSession() *model.Prompt {
	c.session.Reset()
	return c.Recompute()
}

// Snapshot exports the coordinator state with derived statuses.
func (c *Coordinator) Snapshot() model.Situation {
	sit := model.Situation{
		CaseID:        c.caseID,
		Categories:    make([]model.CategorySituation, 0, len(model.Categories)),
		Session:       c.session.Export(c.caseID),
		PendingPrompt: c.Pending(),
	}
	for _, cat := range model.Categories {
		st := c.categories[cat]
		idx := make([]int, 0, len(st.locked))
		for i, on := range st.locked {
			if on {
				idx = append(idx, i)
			}
		}
		slices.Sort(idx)
		view := attempts.Describe(c.Status(cat))
		list := slices.Clone(st.attempts)
		if list == nil {
			list = []model.Attempt{}
		}
		sit.Categories = append(sit.Categories, model.CategorySituation{
			Category:      cat,
			Attempts:      list,
			LockedIndices: idx,
			LegacyStatus:  st.legacy,
			SuccessArmed:  st.successArmed,
			Status:        &view,
			LockState:     c.LockState(cat),
		})
	}
	verdict := attempts.Describe(c.Verdict())
	sit.Verdict = &verdict
	return sit
}
