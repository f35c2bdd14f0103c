// Package forge provides the pull-request forge adapter for taskctl.
// This file maps forge review state onto the internal PR lifecycle.
package forge

import "github.com/taskctl/taskctl/internal/constants"

// Forge-side state and review decision values as reported by gh.
const (
	stateMerged              = "MERGED"
	stateClosed              = "CLOSED"
	stateOpen                = "OPEN"
	decisionApproved         = "APPROVED"
	decisionChangesRequested = "CHANGES_REQUESTED"
)

// TranslateStatus maps a forge PR onto the internal PR lifecycle state.
// Terminal states win over draft, draft wins over review decisions:
//
//	MERGED            -> merged
//	CLOSED            -> closed
//	draft             -> draft
//	APPROVED          -> approved
//	CHANGES_REQUESTED -> in_review
//	OPEN              -> open
//	anything else     -> draft
func TranslateStatus(pr *PR) constants.PRStatus {
	switch pr.State {
	case stateMerged:
		return constants.PRStatusMerged
	case stateClosed:
		return constants.PRStatusClosed
	}
	if pr.IsDraft {
		return constants.PRStatusDraft
	}
	switch pr.ReviewDecision {
	case decisionApproved:
		return constants.PRStatusApproved
	case decisionChangesRequested:
		return constants.PRStatusInReview
	}
	if pr.State == stateOpen {
		return constants.PRStatusOpen
	}
	return constants.PRStatusDraft
}
