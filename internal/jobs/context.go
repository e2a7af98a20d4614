package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/dbctx"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
	"github.com/rankforge/rankforge-backend/internal/repos"
)

// Context is the execution handle for one claimed job run. Pipelines read
// their input through Payload()/PayloadUUID() and terminate through Done or
// Fail; they never write the job_run row directly. Entity state (article /
// keyword research status, progress, cost) lives on the entity rows, not
// here.
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Log     *logger.Logger
	payload map[string]any
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, baseLog *logger.Logger) *Context {
	c := &Context{
		Ctx:  ctx,
		DB:   db,
		Job:  job,
		Repo: repo,
		Log:  baseLog.With("component", "JobContext"),
	}
	_ = c.decodePayload()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// Payload never returns nil; a missing or malformed payload reads as empty.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Heartbeat refreshes heartbeat_at so long stages are not reclaimed as stale.
func (c *Context) Heartbeat() {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	if err := c.Repo.UpdateFields(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, map[string]interface{}{
		"heartbeat_at": now,
	}); err != nil {
		c.Log.Warn("Heartbeat update failed", "jobID", c.Job.ID, "error", err)
		return
	}
	c.Job.HeartbeatAt = &now
}

// Done marks the run succeeded and stores the result payload.
func (c *Context) Done(result map[string]any) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	var resultJSON datatypes.JSON
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			resultJSON = datatypes.JSON(raw)
		}
	}
	if err := c.Repo.UpdateFields(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, map[string]interface{}{
		"status":     types.JobStatusSucceeded,
		"error":      "",
		"result":     resultJSON,
		"locked_at":  nil,
		"updated_at": now,
	}); err != nil {
		c.Log.Warn("Failed to mark job succeeded", "jobID", c.Job.ID, "error", err)
		return
	}
	c.Job.Status = types.JobStatusSucceeded
	c.Job.Error = ""
	c.Job.Result = resultJSON
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
}

// Fail marks the run failed. The row stays eligible for reclaim while
// attempts remain under the worker's limit.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	now := time.Now()
	msg := stage
	if err != nil {
		msg = stage + ": " + err.Error()
	}
	if uerr := c.Repo.UpdateFields(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
		"updated_at":    now,
	}); uerr != nil {
		c.Log.Warn("Failed to mark job failed", "jobID", c.Job.ID, "error", uerr)
		return
	}
	c.Job.Status = types.JobStatusFailed
	c.Job.Error = msg
	c.Job.LastErrorAt = &now
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
}
