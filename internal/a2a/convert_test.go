package a2a

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/agentrun/internal/ledger/models"
	apiv1 "github.com/kandev/agentrun/pkg/api/v1"
)

func TestToAPIStateMapsEveryLedgerStatus(t *testing.T) {
	cases := map[models.TaskStatus]apiv1.TaskState{
		models.TaskStatusWorking:   apiv1.TaskStateWorking,
		models.TaskStatusCompleted: apiv1.TaskStateCompleted,
		models.TaskStatusCanceled:  apiv1.TaskStateCanceled,
		models.TaskStatusFailed:    apiv1.TaskStateFailed,
	}
	for in, want := range cases {
		assert.Equal(t, want, toAPIState(in))
	}
}

func TestToAPITaskCopiesIDsAndDecodesArtifactParts(t *testing.T) {
	parts := []apiv1.Part{apiv1.TextPart("hello")}
	partsJSON, err := json.Marshal(parts)
	require.NoError(t, err)

	task := &models.Task{ID: "task-1", ContextID: "ctx-1", Status: models.TaskStatusCompleted}
	artifacts := []*models.Artifact{
		{ArtifactID: "art-1", Name: "reply", Description: "final answer", Parts: partsJSON},
	}

	out := toAPITask(task, artifacts)

	assert.Equal(t, "task-1", out.ID)
	assert.Equal(t, "ctx-1", out.ContextID)
	assert.Equal(t, apiv1.TaskStateCompleted, out.State)
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "art-1", out.Artifacts[0].ArtifactID)
	assert.Equal(t, "reply", out.Artifacts[0].Name)
	require.Len(t, out.Artifacts[0].Parts, 1)
	assert.Equal(t, "hello", out.Artifacts[0].Parts[0].Text)
}

func TestToAPITaskSkipsArtifactWithUnparseableParts(t *testing.T) {
	task := &models.Task{ID: "task-1", ContextID: "ctx-1", Status: models.TaskStatusWorking}
	artifacts := []*models.Artifact{
		{ArtifactID: "bad", Parts: json.RawMessage(`not-json`)},
	}

	out := toAPITask(task, artifacts)

	assert.Empty(t, out.Artifacts)
}

func TestToAPITaskWithNoArtifacts(t *testing.T) {
	task := &models.Task{ID: "task-1", ContextID: "ctx-1", Status: models.TaskStatusFailed}
	out := toAPITask(task, nil)
	assert.Equal(t, apiv1.TaskStateFailed, out.State)
	assert.Empty(t, out.Artifacts)
}
