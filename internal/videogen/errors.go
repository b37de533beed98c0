package videogen

import (
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

var (
	ErrJobFailed   = errors.New("video job failed")
	ErrJobTimedOut = errors.New("video job timed out")
)

// ProviderError is returned when the jobs API answers with a non-2xx status
// or a non-200 envelope code.
type ProviderError struct {
	Status int
	Code   int
	Detail string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("video provider error: status=%d detail=%s", e.Status, e.Detail)
	}
	return fmt.Sprintf("video provider error: code=%d detail=%s", e.Code, e.Detail)
}

// JobError describes a job that reached a terminal non-success state.
type JobError struct {
	TaskID   string
	State    models.JobState
	FailCode string
	Message  string
	Attempts int
}

func (e *JobError) Error() string {
	switch e.State {
	case models.JobStateTimedOut:
		return fmt.Sprintf("video task %s timed out after %d attempts", e.TaskID, e.Attempts)
	default:
		return fmt.Sprintf("video task %s failed: %s (code: %s)", e.TaskID, e.Message, e.FailCode)
	}
}

func (e *JobError) Unwrap() error {
	if e.State == models.JobStateTimedOut {
		return ErrJobTimedOut
	}
	return ErrJobFailed
}
