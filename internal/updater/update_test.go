package updater

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// updateHandler scripts a full happy-path update run; failCmd (optional)
// makes that one command fail
func updateHandler(t *testing.T, failCmd string) func(string, []string, RunOpts) (CmdResult, error) {
	return func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == failCmd {
			return CmdResult{Stderr: "boom"}, errors.New("exit status 1")
		}
		switch name {
		case "tar":
			require.NoError(t, os.WriteFile(args[1], []byte("archive"), 0644))
		case "pg_dump":
			require.NoError(t, os.WriteFile(args[len(args)-1], []byte("-- dump\n"), 0644))
		case "git":
			switch args[0] {
			case "rev-parse":
				return CmdResult{Stdout: "feedbeef00112233\n"}, nil
			case "log":
				return CmdResult{Stdout: "feedbeef00112233|2026-08-25T12:00:00+03:00\n"}, nil
			}
		}
		return CmdResult{}, nil
	}
}

func runUpdateForTest(t *testing.T, o *Orchestrator) (*models.UpdateLog, []Event) {
	t.Helper()
	logRow := newRunLog(t, o, "update", UpdateStepNames)
	require.True(t, o.gate.TryAcquire(), "caller holds the gate for the run's duration")
	b := NewBroadcaster()
	done := collectEvents(b)

	o.RunUpdate(UpdateRequest{RepoURL: "https://example.com/repo.git", Branch: "main"}, logRow, b)

	events := <-done
	var row models.UpdateLog
	require.NoError(t, o.db.First(&row, logRow.ID).Error)
	return &row, events
}

func TestRunUpdateSuccess(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "")

	manifest := []byte(`{"version": "3.1.0"}`)
	require.NoError(t, os.WriteFile(filepath.Join(o.cfg.ProjectRoot, "package.json"), manifest, 0644))

	row, events := runUpdateForTest(t, o)

	assert.Equal(t, models.RunSuccess, row.Status)
	assert.Equal(t, "3.1.0", row.Version)
	assert.Equal(t, "feedbeef00112233", row.CommitHash)
	assert.NotNil(t, row.CompletedAt)
	require.NotNil(t, row.Duration)

	steps := stepsFromRow(t, o, row.ID)
	require.Len(t, steps, len(UpdateStepNames))
	for _, s := range steps {
		assert.Equal(t, models.StepSuccess, s.Status, "step %q", s.Name)
		assert.NotNil(t, s.StartedAt)
		assert.NotNil(t, s.CompletedAt)
	}

	// One backup row persisted by the first step
	var backups []models.Backup
	require.NoError(t, o.db.Find(&backups).Error)
	require.Len(t, backups, 1)
	assert.Equal(t, "3.1.0", backups[0].Version)
	assert.NotEmpty(t, backups[0].DBPath)

	// Stream contract: init first, complete last, gate and channel released
	require.NotEmpty(t, events)
	assert.Equal(t, EventInit, events[0].Kind)
	complete, ok := events[len(events)-1].Payload.(CompletePayload)
	require.True(t, ok)
	assert.Equal(t, string(models.RunSuccess), complete.Status)
	assert.Equal(t, "3.1.0", complete.Version)
	assert.False(t, o.gate.Held(), "gate must be released after the run")

	var note models.Notification
	require.NoError(t, o.db.Where("type = ?", "success").First(&note).Error)
	assert.Contains(t, note.Message, "3.1.0")
}

func TestRunUpdateNoLockfileUsesNpmInstall(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "")

	runUpdateForTest(t, o)

	assert.True(t, runner.called("npm", "install"))
	assert.False(t, runner.called("npm", "ci"))
}

func TestRunUpdateLockfileUsesNpmCI(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "")

	require.NoError(t, os.WriteFile(filepath.Join(o.cfg.ProjectRoot, "package-lock.json"), []byte("{}"), 0644))

	runUpdateForTest(t, o)

	assert.True(t, runner.called("npm", "ci"))
}

func TestRunUpdateBackupFailureAbortsBeforeCodeChange(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "tar")

	row, events := runUpdateForTest(t, o)

	assert.Equal(t, models.RunFailed, row.Status)
	assert.NotEmpty(t, row.Error)

	steps := stepsFromRow(t, o, row.ID)
	assert.Equal(t,
		[]string{"failed", "skipped", "skipped", "skipped", "skipped", "skipped", "skipped"},
		stepStatuses(steps))

	// The working tree must not have been touched
	assert.False(t, runner.called("git", "reset"))

	complete, ok := events[len(events)-1].Payload.(CompletePayload)
	require.True(t, ok)
	assert.Equal(t, string(models.RunFailed), complete.Status)
	assert.NotEmpty(t, complete.Error)
	assert.False(t, o.gate.Held())
}

func TestRunUpdateBuildFailureSkipsRemaining(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "npm")

	row, _ := runUpdateForTest(t, o)

	assert.Equal(t, models.RunFailed, row.Status)

	steps := stepsFromRow(t, o, row.ID)
	assert.Equal(t,
		[]string{"success", "success", "failed", "skipped", "skipped", "skipped", "skipped"},
		stepStatuses(steps))

	// No restart on a failed deployment
	assert.False(t, runner.called("pm2"))

	var note models.Notification
	require.NoError(t, o.db.Where("type = ?", "error").First(&note).Error)
}

func TestRunUpdateRestartFailureDowngradesToWarning(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = updateHandler(t, "pm2")

	row, _ := runUpdateForTest(t, o)

	assert.Equal(t, models.RunSuccess, row.Status, "a restart failure must not fail the run")

	steps := stepsFromRow(t, o, row.ID)
	require.Len(t, steps, len(UpdateStepNames))
	assert.Equal(t, models.StepSuccess, steps[5].Status)
	assert.Contains(t, steps[5].Message, "Uyarı")
	assert.Equal(t, models.StepSuccess, steps[6].Status)
}

func TestRunUpdateSweptMidRunStaysFailed(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	base := updateHandler(t, "")
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == "pm2" {
			// The minute cron fires while the run is still on the restart step
			stale := time.Now().Add(-StaleRunTimeout - time.Minute)
			require.NoError(t, o.db.Model(&models.UpdateLog{}).
				Where("status = ?", models.RunInProgress).
				Update("started_at", stale).Error)
			o.SweepStale()
		}
		return base(name, args, opts)
	}

	row, events := runUpdateForTest(t, o)

	// FAILED is terminal; a late finish must not resurrect the row
	assert.Equal(t, models.RunFailed, row.Status)
	assert.Equal(t, staleRunError, row.Error)
	assert.False(t, o.gate.Held())

	complete, ok := events[len(events)-1].Payload.(CompletePayload)
	require.True(t, ok)
	assert.Equal(t, string(models.RunFailed), complete.Status)
	assert.Equal(t, staleRunError, complete.Error)
}

func TestRunUpdatePanicKeepsStepSnapshot(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	base := updateHandler(t, "")
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == "npm" {
			panic("runner blew up")
		}
		return base(name, args, opts)
	}

	row, _ := runUpdateForTest(t, o)

	assert.Equal(t, models.RunFailed, row.Status)
	assert.Contains(t, row.Error, "beklenmeyen hata")
	assert.False(t, o.gate.Held())

	// The steps completed before the panic survive on the row
	steps := stepsFromRow(t, o, row.ID)
	assert.Equal(t,
		[]string{"success", "success", "failed", "skipped", "skipped", "skipped", "skipped"},
		stepStatuses(steps))
	assert.Contains(t, steps[2].Message, "beklenmeyen hata")
}

func TestRunUpdateReleasesGateOnPanic(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == "tar" {
			panic("runner blew up")
		}
		return CmdResult{}, nil
	}

	logRow := newRunLog(t, o, "update", UpdateStepNames)
	require.True(t, o.gate.TryAcquire())
	b := NewBroadcaster()
	done := collectEvents(b)

	o.RunUpdate(UpdateRequest{RepoURL: "u", Branch: "main"}, logRow, b)

	events := <-done
	assert.False(t, o.gate.Held())

	var row models.UpdateLog
	require.NoError(t, o.db.First(&row, logRow.ID).Error)
	assert.Equal(t, models.RunFailed, row.Status)
	assert.Contains(t, row.Error, "beklenmeyen hata")

	complete, ok := events[len(events)-1].Payload.(CompletePayload)
	require.True(t, ok)
	assert.Equal(t, string(models.RunFailed), complete.Status)
}
