// Package workflow defines the sign-off lifecycle: which triggers are
// permitted in which status and what status they lead to.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paysign/signoff/internal/domain/entity"
)

// Trigger is a user-initiated transition on an approval
type Trigger string

const (
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerDelay    Trigger = "DELAY"
	TriggerTransfer Trigger = "TRANSFER"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the
// approval's current status
var ErrInvalidTransition = errors.New("transition not permitted")

// transitions encodes the lifecycle: Waiting fans out to Signed, Rejected or
// Delayed; Transfer restarts the cycle under new ownership from any
// non-signed status. Signed offers no further triggers.
var transitions = map[entity.Status]map[Trigger]entity.Status{
	entity.StatusWaiting: {
		TriggerApprove:  entity.StatusSigned,
		TriggerReject:   entity.StatusRejected,
		TriggerDelay:    entity.StatusDelayed,
		TriggerTransfer: entity.StatusWaiting,
	},
	entity.StatusRejected: {
		TriggerTransfer: entity.StatusWaiting,
	},
	entity.StatusDelayed: {
		TriggerTransfer: entity.StatusWaiting,
	},
}

// CanFire reports whether the trigger is permitted in the given status
func CanFire(from entity.Status, trigger Trigger) bool {
	_, ok := transitions[from][trigger]
	return ok
}

// Next returns the status the trigger leads to from the given status
func Next(from entity.Status, trigger Trigger) (entity.Status, error) {
	to, ok := transitions[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// PermittedTriggers returns the triggers that can fire in the given status
func PermittedTriggers(from entity.Status) []Trigger {
	var triggers []Trigger
	for trigger := range transitions[from] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
