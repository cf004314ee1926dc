package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPendingTasksMessage(t *testing.T) {
	assert.Equal(t, "1 task still pending", NewPendingTasks(1).Error())
	assert.Equal(t, "3 tasks still pending", NewPendingTasks(3).Error())
	assert.Equal(t, 3, NewPendingTasks(3).Pending)
}

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("saving board: %w", NewGating("plan not in draft"))

	assert.True(t, IsGating(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsBoundary(wrapped))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "invalid task_id: is required", NewValidation("task_id", "is required").Error())
	assert.Equal(t, "goal not found: g-9", NewNotFound("goal", "g-9").Error())
	assert.Equal(t, "boundary violation in update_task: nope", NewBoundary("update_task", "nope").Error())
}

func TestDeliveryUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewDelivery("agent:dev:task-1", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "agent:dev:task-1")
}
