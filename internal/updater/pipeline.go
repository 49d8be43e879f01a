package updater

import (
	"encoding/json"
	"log"
	"time"

	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// run carries the in-flight state of one update or rollback execution. Steps
// are mutated in place and echoed to the log row after every transition.
type run struct {
	o      *Orchestrator
	logRow *models.UpdateLog
	steps  []models.StepInfo
	b      *Broadcaster
	start  time.Time
}

func newRun(o *Orchestrator, logRow *models.UpdateLog, names []string, b *Broadcaster) *run {
	return &run{
		o:      o,
		logRow: logRow,
		steps:  PendingSteps(names),
		b:      b,
		start:  time.Now(),
	}
}

// PendingSteps builds the initial all-pending step list for a run
func PendingSteps(names []string) []models.StepInfo {
	steps := make([]models.StepInfo, len(names))
	for i, name := range names {
		steps[i] = models.StepInfo{Name: name, Status: models.StepPending}
	}
	return steps
}

// MarshalSteps serializes a step list for the log row's jsonb column
func MarshalSteps(steps []models.StepInfo) json.RawMessage {
	data, err := json.Marshal(steps)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

func (r *run) emitInit() {
	initSteps := make([]InitStepInfo, len(r.steps))
	for i, s := range r.steps {
		initSteps[i] = InitStepInfo{Name: s.Name, Status: string(s.Status)}
	}
	r.b.Publish(EventInit, InitPayload{LogID: r.logRow.ID, Steps: initSteps})
}

// persistSteps snapshots the step list onto the log row. Write failures are
// logged and swallowed: a broken log write must never block the run or keep
// the gate held.
func (r *run) persistSteps() {
	r.logRow.Steps = MarshalSteps(r.steps)
	if err := r.o.db.Model(r.logRow).Update("steps", r.logRow.Steps).Error; err != nil {
		log.Printf("Update log %d: steps snapshot write failed: %v", r.logRow.ID, err)
	}
}

func (r *run) emitStep(index int) {
	r.b.Publish(EventStep, StepPayload{Index: index, Step: r.steps[index]})
}

// runStep executes one step with uniform bookkeeping: running + start time,
// broadcast, invoke, then success or failed with the completion time. The
// step's own error is returned so the caller can abort the pipeline.
func (r *run) runStep(index int, fn func() (string, error)) error {
	now := time.Now()
	r.steps[index].Status = models.StepRunning
	r.steps[index].StartedAt = &now
	r.persistSteps()
	r.emitStep(index)

	msg, err := fn()

	done := time.Now()
	r.steps[index].CompletedAt = &done
	if err != nil {
		r.steps[index].Status = models.StepFailed
		r.steps[index].Message = err.Error()
	} else {
		r.steps[index].Status = models.StepSuccess
		r.steps[index].Message = msg
	}
	r.persistSteps()
	r.emitStep(index)
	return err
}

// skipRemaining marks every still-pending step as skipped
func (r *run) skipRemaining(reason string) {
	for i := range r.steps {
		if r.steps[i].Status == models.StepPending {
			r.steps[i].Status = models.StepSkipped
			r.steps[i].Message = reason
			r.emitStep(i)
		}
	}
	r.persistSteps()
}

func (r *run) durationSeconds() int {
	return int(time.Since(r.start).Seconds())
}

// finalizeSuccess closes the run as SUCCESS and emits the complete event.
// FAILED and SUCCESS are terminal: the update only lands while the row is
// still IN_PROGRESS. A run that outlived the stale sweep finds its row
// already force-failed and must report that instead of resurrecting it.
func (r *run) finalizeSuccess(version, commitHash string) {
	duration := r.durationSeconds()
	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.RunSuccess,
		"completed_at": now,
		"duration":     duration,
		"steps":        MarshalSteps(r.steps),
	}
	if version != "" {
		updates["version"] = version
	}
	if commitHash != "" {
		updates["commit_hash"] = commitHash
	}
	res := r.o.db.Model(r.logRow).Where("status = ?", models.RunInProgress).Updates(updates)
	if res.Error != nil {
		log.Printf("Update log %d: finalize write failed: %v", r.logRow.ID, res.Error)
	}
	if res.Error == nil && res.RowsAffected == 0 {
		log.Printf("Update log %d: run finished after the stale sweep force-failed it", r.logRow.ID)
		r.b.Publish(EventComplete, CompletePayload{
			Status:   string(models.RunFailed),
			Duration: duration,
			Error:    staleRunError,
		})
		return
	}

	r.b.Publish(EventComplete, CompletePayload{
		Status:   string(models.RunSuccess),
		Duration: duration,
		Version:  version,
	})
}

// finalizeFailure skips the remainder, closes the run as FAILED, and emits
// the complete event carrying the error text. The row update carries the
// same IN_PROGRESS guard as finalizeSuccess: a row the stale sweep already
// failed keeps the sweep's error.
func (r *run) finalizeFailure(runErr error) {
	// A panic can leave the current step mid-flight; close it out first
	for i := range r.steps {
		if r.steps[i].Status == models.StepRunning {
			now := time.Now()
			r.steps[i].Status = models.StepFailed
			r.steps[i].Message = runErr.Error()
			r.steps[i].CompletedAt = &now
			r.emitStep(i)
		}
	}
	r.skipRemaining("Önceki adım başarısız olduğu için atlandı")

	duration := r.durationSeconds()
	now := time.Now()
	res := r.o.db.Model(r.logRow).Where("status = ?", models.RunInProgress).Updates(map[string]interface{}{
		"status":       models.RunFailed,
		"completed_at": now,
		"duration":     duration,
		"error":        runErr.Error(),
		"steps":        MarshalSteps(r.steps),
	})
	if res.Error != nil {
		log.Printf("Update log %d: finalize write failed: %v", r.logRow.ID, res.Error)
	}
	if res.Error == nil && res.RowsAffected == 0 {
		log.Printf("Update log %d: run failed after the stale sweep force-failed it", r.logRow.ID)
	}

	r.b.Publish(EventComplete, CompletePayload{
		Status:   string(models.RunFailed),
		Duration: duration,
		Error:    runErr.Error(),
	})
}

// notifyAdmins drops a back office notification about the run's outcome
func (r *run) notifyAdmins(title, message, kind string) {
	n := models.Notification{Title: title, Message: message, Type: kind}
	if err := r.o.db.Create(&n).Error; err != nil {
		log.Printf("Notification write failed: %v", err)
	}
}
