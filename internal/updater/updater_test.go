package updater

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/zedmarley2/pars-tabela-sub000/internal/config"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeRunner scripts command results and records every invocation
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	handler func(name string, args []string, opts RunOpts) (CmdResult, error)
}

func (f *fakeRunner) Run(name string, args []string, opts RunOpts) (CmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(name, args, opts)
	}
	return CmdResult{}, nil
}

// called reports whether any recorded invocation starts with the given words
func (f *fakeRunner) called(words ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if len(call) < len(words) {
			continue
		}
		match := true
		for i, w := range words {
			if call[i] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.UpdateLog{}, &models.Backup{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeRunner) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		DBHost:      "localhost",
		DBPort:      5432,
		DBUser:      "test",
		DBPassword:  "test",
		DBName:      "test",
		ProjectRoot: root,
		BackupDir:   filepath.Join(root, "backups"),
	}
	runner := &fakeRunner{}
	o := &Orchestrator{
		cfg:    cfg,
		db:     openTestDB(t),
		runner: runner,
		gate:   &Gate{},
	}
	return o, runner
}

// newRunLog creates the IN_PROGRESS log row a pipeline run operates on
func newRunLog(t *testing.T, o *Orchestrator, kind string, names []string) *models.UpdateLog {
	t.Helper()
	logRow := &models.UpdateLog{
		Kind:   kind,
		Status: models.RunInProgress,
		Steps:  MarshalSteps(PendingSteps(names)),
	}
	if err := o.db.Create(logRow).Error; err != nil {
		t.Fatalf("create log row: %v", err)
	}
	return logRow
}

// collectEvents drains a broadcaster in the background and delivers the
// full event list once the stream closes
func collectEvents(b *Broadcaster) <-chan []Event {
	out := make(chan []Event, 1)
	go func() {
		var events []Event
		for ev := range b.Events() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}

func stepsFromRow(t *testing.T, o *Orchestrator, id uint) []models.StepInfo {
	t.Helper()
	var row models.UpdateLog
	if err := o.db.First(&row, id).Error; err != nil {
		t.Fatalf("reload log row: %v", err)
	}
	var steps []models.StepInfo
	if err := json.Unmarshal(row.Steps, &steps); err != nil {
		t.Fatalf("unmarshal steps: %v", err)
	}
	return steps
}

func stepStatuses(steps []models.StepInfo) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = string(s.Status)
	}
	return out
}
