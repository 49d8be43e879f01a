package updater

import (
	"fmt"
	"os"

	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// RollbackStepNames are the user-facing labels of the rollback pipeline, in
// execution order.
var RollbackStepNames = []string{
	"Doğrulama",
	"Dosyaları Geri Yükle",
	"Veritabanını Geri Yükle",
	"Bağımlılıklar",
	"Şema Senkronizasyonu",
	"Derleme",
	"Yeniden Başlatma",
	"Tamamlandı",
}

// RunRollback restores the deployment to the given backup's snapshot,
// publishing progress to b. Same gate/broadcaster contract as RunUpdate.
func (o *Orchestrator) RunRollback(backup *models.Backup, logRow *models.UpdateLog, b *Broadcaster) {
	r := newRun(o, logRow, RollbackStepNames, b)
	defer func() {
		if rec := recover(); rec != nil {
			r.finalizeFailure(fmt.Errorf("beklenmeyen hata: %v", rec))
		}
		o.gate.Release()
		b.Close()
	}()

	r.emitInit()

	// 1. Doğrulama. The backup row may outlive its files; check before
	// touching anything so a half-missing snapshot never gets applied.
	if err := r.runStep(0, func() (string, error) {
		if _, err := os.Stat(backup.Path); err != nil {
			return "", fmt.Errorf("yedek arşivi bulunamadı: %s", backup.Path)
		}
		if backup.DBPath != "" {
			if _, err := os.Stat(backup.DBPath); err != nil {
				return "", fmt.Errorf("veritabanı dökümü bulunamadı: %s", backup.DBPath)
			}
			return "Yedek doğrulandı", nil
		}
		return "Yedek doğrulandı (yalnızca dosya yedeği, veritabanı dökümü yok)", nil
	}); err != nil {
		r.finalizeFailure(err)
		r.notifyAdmins("Geri Alma Başarısız", err.Error(), "error")
		return
	}

	// 2. Dosyaları Geri Yükle
	if err := r.runStep(1, func() (string, error) {
		if err := o.extractArchive(backup.Path); err != nil {
			return "", err
		}
		return "Dosyalar yedekten geri yüklendi", nil
	}); err != nil {
		r.finalizeFailure(err)
		r.notifyAdmins("Geri Alma Başarısız", err.Error(), "error")
		return
	}

	// 3. Veritabanını Geri Yükle. Fatal when a dump exists; a files-only
	// backup skips with a warning instead, matching backup creation's
	// tolerance for a failed dump.
	if err := r.runStep(2, func() (string, error) {
		if backup.DBPath == "" {
			return "Uyarı: veritabanı dökümü olmadığından veritabanı geri yüklemesi atlandı", nil
		}
		if err := o.applyDump(backup.DBPath); err != nil {
			return "", err
		}
		return "Veritabanı yedekten geri yüklendi", nil
	}); err != nil {
		r.finalizeFailure(err)
		r.notifyAdmins("Geri Alma Başarısız", err.Error(), "error")
		return
	}

	// 4. Bağımlılıklar, 5. Şema Senkronizasyonu, 6. Derleme
	requiredSteps := []func() (string, error){o.installDeps, o.syncSchema, o.rebuild}
	for i, fn := range requiredSteps {
		if err := r.runStep(3+i, fn); err != nil {
			r.finalizeFailure(err)
			r.notifyAdmins("Geri Alma Başarısız", err.Error(), "error")
			return
		}
	}

	// 7. Yeniden Başlatma, best-effort, never fatal
	r.runStep(6, o.restartProcesses)

	// 8. Tamamlandı. A rollback lands on the backup's recorded state,
	// so that version is reported rather than re-read.
	r.runStep(7, func() (string, error) {
		return fmt.Sprintf("Sistem v%s sürümüne geri alındı", backup.Version), nil
	})

	r.finalizeSuccess(backup.Version, backup.CommitHash)
	r.notifyAdmins("Sistem Geri Alındı",
		fmt.Sprintf("Sistem %s yedeğinden v%s sürümüne geri alındı", backup.ID, backup.Version), "success")
}
