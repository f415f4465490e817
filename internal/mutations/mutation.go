// Package mutations implements the operations an operator can replay against
// the attempts of a case.
package mutations

import (
	"permit-engine/internal/lock"
	"permit-engine/internal/model"
)

// MutationHandler defines the contract for all mutation implementations.
// Validate rejects malformed input with CRITICAL messages and must not touch
// the coordinator. Apply performs the change; rejections by the coordinator
// come back as WARNING messages and leave the state unchanged.
type MutationHandler interface {
	Validate(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage
	Apply(state *lock.Coordinator, mutation *model.Mutation) []model.CalculationMessage
}
