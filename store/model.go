package store

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/queuectl/queuectl/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	Id         string    `bun:"id,pk"`
	Command    string    `bun:"command,notnull"`
	State      job.State `bun:"state,notnull"`
	Attempts   int       `bun:"attempts,notnull,default:0"`
	MaxRetries *int      `bun:"max_retries"`
	RunAfter   time.Time `bun:"run_after,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (jm *jobModel) toJob() *job.Job {
	return &job.Job{
		Id:         jm.Id,
		Command:    jm.Command,
		State:      jm.State,
		Attempts:   jm.Attempts,
		MaxRetries: jm.MaxRetries,
		RunAfter:   jm.RunAfter,
		CreatedAt:  jm.CreatedAt,
		UpdatedAt:  jm.UpdatedAt,
	}
}

type configModel struct {
	bun.BaseModel `bun:"table:config"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}
