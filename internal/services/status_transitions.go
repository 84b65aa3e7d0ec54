package services

import "cmsapi/internal/models"

// AccountTransitions lists the status moves reachable through lock, unlock
// and soft delete. Deleted has no outgoing edge here: only restoreTransition
// leaves it.
var AccountTransitions = map[models.AccountStatus]map[models.AccountStatus]bool{
	models.StatusActive: {models.StatusLocked: true, models.StatusDeleted: true},
	models.StatusLocked: {models.StatusActive: true, models.StatusDeleted: true},
}

// restoreTransition is the single way out of Deleted.
var restoreTransition = struct{ from, to models.AccountStatus }{models.StatusDeleted, models.StatusLocked}

func canTransition(current, to models.AccountStatus) bool {
	return AccountTransitions[current][to]
}
