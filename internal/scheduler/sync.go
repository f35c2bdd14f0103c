// Package scheduler coordinates parallel task execution for one plan.
// This file reconciles local PR state against the forge.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/ctxutil"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/forge"
)

// SyncResult summarises one reconciliation pass.
type SyncResult struct {
	// Polled counts tasks whose PR was queried.
	Polled int

	// Updated counts PRs whose stored status changed.
	Updated int

	// Completed lists tasks finished because their PR merged.
	Completed []string
}

// Sync polls the forge for every task holding a PR, translates the forge
// state onto the internal lifecycle, persists status changes, and completes
// tasks whose PR merged. Tasks whose PR moved into review are advanced to
// in_review so the query surface reflects the forge.
func (s *Scheduler) Sync(ctx context.Context, state *State) (*SyncResult, error) {
	if s.forge == nil {
		return nil, fmt.Errorf("%w: no forge configured", taskctlerrors.ErrForgeUnavailable)
	}

	result := &SyncResult{}
	for _, taskID := range state.Graph.TaskIDs() {
		if err := ctxutil.Canceled(ctx); err != nil {
			return result, err
		}
		task := state.Tasks[taskID]
		if task.Status != constants.TaskStatusPRCreated && task.Status != constants.TaskStatusInReview {
			continue
		}

		local, err := s.store.GetPRByTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, taskctlerrors.ErrNotFound) {
				continue
			}
			return result, err
		}

		remote, err := s.forge.GetPR(ctx, local.Number)
		if err != nil {
			s.logger.Warn().Err(err).Int("pr", local.Number).Msg("poll failed")
			continue
		}
		result.Polled++

		translated := forge.TranslateStatus(remote)
		if translated != local.Status {
			if err := s.store.TransitionPR(ctx, local.ID, translated); err != nil {
				// The forge can report states our lifecycle does not
				// allow from here (e.g. merged from draft); log and move on.
				s.logger.Warn().Err(err).Int("pr", local.Number).
					Str("to", string(translated)).Msg("pr transition rejected")
				continue
			}
			result.Updated++
		}

		switch translated {
		case constants.PRStatusMerged:
			if err := s.Complete(ctx, state, taskID, false); err != nil {
				return result, err
			}
			result.Completed = append(result.Completed, taskID)
		case constants.PRStatusInReview, constants.PRStatusApproved:
			if task.Status == constants.TaskStatusPRCreated {
				if err := s.store.MarkTaskInReview(ctx, taskID); err != nil {
					return result, err
				}
				task.Status = constants.TaskStatusInReview
			}
		}
	}
	return result, nil
}
