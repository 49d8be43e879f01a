package updater

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// UpdateStepNames are the user-facing labels of the update pipeline, in
// execution order.
var UpdateStepNames = []string{
	"Yedekleme",
	"Kod Güncelleme",
	"Bağımlılıklar",
	"Veritabanı Şeması",
	"Derleme",
	"Yeniden Başlatma",
	"Tamamlandı",
}

// UpdateRequest carries the inputs of one update run
type UpdateRequest struct {
	RepoURL string
	Branch  string
}

// RunUpdate executes the update pipeline against an already-created
// IN_PROGRESS log row, publishing progress to b. The caller must hold the
// gate; it is released together with the broadcaster close when the run
// ends, whatever the outcome.
func (o *Orchestrator) RunUpdate(req UpdateRequest, logRow *models.UpdateLog, b *Broadcaster) {
	r := newRun(o, logRow, UpdateStepNames, b)
	defer func() {
		if rec := recover(); rec != nil {
			r.finalizeFailure(fmt.Errorf("beklenmeyen hata: %v", rec))
		}
		o.gate.Release()
		b.Close()
	}()

	r.emitInit()

	current := o.CurrentVersion()

	// 1. Yedekleme
	if err := r.runStep(0, func() (string, error) {
		res, err := o.CreateBackup(current.Version, current.CommitHash)
		if err != nil {
			return "", err
		}
		backup := models.Backup{
			ID:         uuid.NewString(),
			Path:       res.FilePath,
			DBPath:     res.DBPath,
			Version:    current.Version,
			CommitHash: current.CommitHash,
			SizeBytes:  res.SizeBytes,
			Note:       fmt.Sprintf("Güncelleme öncesi otomatik yedek (v%s)", current.Version),
		}
		if err := o.db.Create(&backup).Error; err != nil {
			return "", fmt.Errorf("persist backup record: %w", err)
		}
		return fmt.Sprintf("Yedek alındı (%.1f MB)", float64(res.SizeBytes)/(1024*1024)), nil
	}); err != nil {
		r.finalizeFailure(err)
		r.notifyAdmins("Sistem Güncellemesi Başarısız", err.Error(), "error")
		return
	}

	// 2. Kod Güncelleme
	if err := r.runStep(1, func() (string, error) {
		newHash, err := o.resetToRemote(req.RepoURL, req.Branch)
		if err != nil {
			return "", err
		}
		short := newHash
		if len(short) > 8 {
			short = short[:8]
		}
		return fmt.Sprintf("Kod güncellendi: %s", short), nil
	}); err != nil {
		r.finalizeFailure(err)
		r.notifyAdmins("Sistem Güncellemesi Başarısız", err.Error(), "error")
		return
	}

	// 3. Bağımlılıklar, 4. Veritabanı Şeması, 5. Derleme
	requiredSteps := []func() (string, error){o.installDeps, o.syncSchema, o.rebuild}
	for i, fn := range requiredSteps {
		if err := r.runStep(2+i, fn); err != nil {
			r.finalizeFailure(err)
			r.notifyAdmins("Sistem Güncellemesi Başarısız", err.Error(), "error")
			return
		}
	}

	// 6. Yeniden Başlatma, never fatal; restartProcesses degrades to a warning
	r.runStep(5, o.restartProcesses)

	// 7. Tamamlandı
	r.runStep(6, func() (string, error) {
		return "Güncelleme başarıyla tamamlandı", nil
	})

	final := o.CurrentVersion()
	r.finalizeSuccess(final.Version, final.CommitHash)
	r.notifyAdmins("Sistem Güncellendi",
		fmt.Sprintf("Sistem v%s sürümüne güncellendi (%s)", final.Version, final.CommitHash), "success")
}
