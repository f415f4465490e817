// Package engine replays attempt mutations against a case situation.
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"permit-engine/internal/jsonpatch"
	"permit-engine/internal/lock"
	"permit-engine/internal/logger"
	"permit-engine/internal/metrics"
	"permit-engine/internal/model"
	"permit-engine/internal/mutations"
)

// Process restores the situation carried by req, applies its mutations in
// order and reports the resulting situation. Processing stops at the first
// CRITICAL message; WARNING messages leave the state unchanged and processing
// continues.
func Process(req *model.CalculationRequest, log *logger.Logger) *model.CalculationResponse {
	start := time.Now()
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("case_id", req.CaseID)

	var allMessages []model.CalculationMessage
	var processedMutations []model.ProcessedMutation
	outcome := model.OutcomeSuccess
	hasCritical := false

	record := func(msg model.CalculationMessage) int {
		msg.ID = len(allMessages)
		allMessages = append(allMessages, msg)
		metrics.MutationMessages.WithLabelValues(msg.Level, msg.Code).Inc()
		if msg.Level == model.LevelCritical {
			hasCritical = true
		}
		return msg.ID
	}

	state := lock.New(req.CaseID, lock.NewSession(), log)
	if err := state.Restore(req.Situation); err != nil {
		log.Warn("Rejected input situation", "error", err)
		record(model.CalculationMessage{
			Level:   model.LevelCritical,
			Code:    model.CodeInvalidSituation,
			Message: err.Error(),
		})
		state = lock.New(req.CaseID, lock.NewSession(), log)
	}
	state.Recompute()
	initial := state.Snapshot()

	muts := req.CalculationInstructions.Mutations
	var lastMutationID, lastActualAt string
	lastMutationIndex := 0
	if len(muts) > 0 {
		lastMutationID = muts[0].MutationID
		lastActualAt = muts[0].ActualAt
	}

	for i := 0; i < len(muts) && !hasCritical; i++ {
		mut := muts[i]
		handler, ok := mutations.Get(mut.MutationDefinitionName)
		if !ok {
			id := record(model.CalculationMessage{
				Level:   model.LevelCritical,
				Code:    model.CodeUnknownMutation,
				Message: fmt.Sprintf("Unknown mutation: %s", mut.MutationDefinitionName),
			})
			processedMutations = append(processedMutations, model.ProcessedMutation{
				Mutation:                  mut,
				CalculationMessageIndexes: []int{id},
			})
			break
		}

		var msgIndexes []int
		for _, vm := range handler.Validate(state, &mut) {
			msgIndexes = append(msgIndexes, record(vm))
		}
		if !hasCritical {
			for _, am := range handler.Apply(state, &mut) {
				msgIndexes = append(msgIndexes, record(am))
			}
		}

		processedMutations = append(processedMutations, model.ProcessedMutation{
			Mutation:                  mut,
			CalculationMessageIndexes: msgIndexes,
		})

		if !hasCritical {
			lastMutationID = mut.MutationID
			lastMutationIndex = i
			lastActualAt = mut.ActualAt
		}
	}
	if hasCritical {
		outcome = model.OutcomeFailure
	}

	end := state.Snapshot()
	patch, err := jsonpatch.Between(initial, end)
	if err != nil {
		log.Error("Failed to diff situations", "error", err)
		patch = []model.PatchOperation{}
	}

	elapsed := time.Since(start)
	now := time.Now().UTC()

	if allMessages == nil {
		allMessages = []model.CalculationMessage{}
	}
	if processedMutations == nil {
		processedMutations = []model.ProcessedMutation{}
	}

	log.Debug("Calculation finished",
		"outcome", outcome,
		"mutations", len(processedMutations),
		"messages", len(allMessages),
	)

	return &model.CalculationResponse{
		CalculationMetadata: model.CalculationMetadata{
			CalculationID:          uuid.New().String(),
			CaseID:                 req.CaseID,
			CalculationStartedAt:   now.Add(-elapsed).Format(time.RFC3339),
			CalculationCompletedAt: now.Format(time.RFC3339),
			CalculationDurationMs:  elapsed.Milliseconds(),
			CalculationOutcome:     outcome,
		},
		CalculationResult: model.CalculationResult{
			Messages:  allMessages,
			Mutations: processedMutations,
			EndSituation: model.SituationEnvelope{
				MutationID:    lastMutationID,
				MutationIndex: lastMutationIndex,
				ActualAt:      lastActualAt,
				Situation:     end,
			},
			InitialSituation: initial,
			SituationPatch:   patch,
		},
	}
}
