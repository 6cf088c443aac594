package api

import (
	"time"

	"github.com/queuectl/queuectl/job"
)

// jobDTO is the wire shape of a job record: timestamps and run_after
// are epoch milliseconds, not RFC3339, matching the underlying columns.
type jobDTO struct {
	Id         string `json:"id"`
	Command    string `json:"command"`
	State      string `json:"state"`
	Attempts   int    `json:"attempts"`
	MaxRetries *int   `json:"max_retries"`
	RunAfter   int64  `json:"run_after"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func toJobDTO(j *job.Job) jobDTO {
	return jobDTO{
		Id:         j.Id,
		Command:    j.Command,
		State:      j.State.String(),
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		RunAfter:   toMillis(j.RunAfter),
		CreatedAt:  toMillis(j.CreatedAt),
		UpdatedAt:  toMillis(j.UpdatedAt),
	}
}

func toJobDTOs(jobs []*job.Job) []jobDTO {
	ret := make([]jobDTO, len(jobs))
	for i, j := range jobs {
		ret[i] = toJobDTO(j)
	}
	return ret
}
