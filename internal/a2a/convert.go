package a2a

import (
	"encoding/json"

	"github.com/kandev/agentrun/internal/ledger/models"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

// toAPITask renders a ledger task row plus its artifacts as the
// externally-visible snapshot returned by tasks/get and non-blocking
// message/send.
func toAPITask(task *models.Task, artifacts []*models.Artifact) *apiv1.Task {
	out := &apiv1.Task{
		ID:        task.ID,
		ContextID: task.ContextID,
		State:     toAPIState(task.Status),
	}
	for _, a := range artifacts {
		var parts []apiv1.Part
		if err := json.Unmarshal(a.Parts, &parts); err != nil {
			continue
		}
		out.Artifacts = append(out.Artifacts, apiv1.Artifact{
			ArtifactID:  a.ArtifactID,
			Name:        a.Name,
			Description: a.Description,
			Parts:       parts,
		})
	}
	return out
}

func toAPIState(s models.TaskStatus) apiv1.TaskState {
	switch s {
	case models.TaskStatusWorking:
		return apiv1.TaskStateWorking
	case models.TaskStatusCompleted:
		return apiv1.TaskStateCompleted
	case models.TaskStatusCanceled:
		return apiv1.TaskStateCanceled
	case models.TaskStatusFailed:
		return apiv1.TaskStateFailed
	default:
		return apiv1.TaskStateWorking
	}
}
