package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Step implementations shared by the update and rollback pipelines. Each
// returns the human-readable result message shown in the step list.

// resetToRemote fetches the remote branch and hard-resets the working tree
// to its tip, discarding local modifications. Returns the new revision hash.
func (o *Orchestrator) resetToRemote(repoURL, branch string) (string, error) {
	if _, err := o.runner.Run("git", []string{"fetch", repoURL, branch}, RunOpts{}); err != nil {
		return "", err
	}
	if _, err := o.runner.Run("git", []string{"reset", "--hard", "FETCH_HEAD"}, RunOpts{}); err != nil {
		return "", err
	}
	res, err := o.runner.Run("git", []string{"rev-parse", "HEAD"}, RunOpts{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// installDeps wipes node_modules and performs a clean install. NODE_ENV is
// forced to development so build-time tooling installs even on a production
// host; npm ci is preferred when the lockfile is present.
func (o *Orchestrator) installDeps() (string, error) {
	if err := os.RemoveAll(filepath.Join(o.cfg.ProjectRoot, "node_modules")); err != nil {
		return "", fmt.Errorf("remove node_modules: %w", err)
	}

	npmCmd := "install"
	if _, err := os.Stat(filepath.Join(o.cfg.ProjectRoot, "package-lock.json")); err == nil {
		npmCmd = "ci"
	}

	env := []string{"NODE_ENV=development", "NPM_CONFIG_PRODUCTION=false"}
	if _, err := o.runner.Run("npm", []string{npmCmd}, RunOpts{Env: env}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bağımlılıklar yeniden kuruldu (npm %s)", npmCmd), nil
}

// syncSchema applies pending SQL migrations; when the migrations directory
// holds none it falls back to the schema push (AutoMigrate via the -migrate
// flag, run against the freshly fetched code), which may drop data the new
// models no longer map.
func (o *Orchestrator) syncSchema() (string, error) {
	files, _ := filepath.Glob(filepath.Join(o.cfg.ProjectRoot, "migrations", "*.sql"))
	sort.Strings(files)

	if len(files) == 0 {
		_, err := o.runner.Run("go", []string{"run", "./cmd/api", "-migrate"}, RunOpts{})
		if err != nil {
			return "", err
		}
		return "Şema senkronize edildi (otomatik migrasyon)", nil
	}

	env := []string{"PGPASSWORD=" + o.cfg.DBPassword}
	for _, file := range files {
		args := append(o.psqlArgs(), "-v", "ON_ERROR_STOP=1", "-f", file)
		if _, err := o.runner.Run("psql", args, RunOpts{Env: env}); err != nil {
			return "", fmt.Errorf("migration %s: %w", filepath.Base(file), err)
		}
	}
	return fmt.Sprintf("%d migration uygulandı", len(files)), nil
}

// rebuild clears the frontend build cache, rebuilds the frontend, and
// recompiles the API binary
func (o *Orchestrator) rebuild() (string, error) {
	if err := os.RemoveAll(filepath.Join(o.cfg.ProjectRoot, ".next")); err != nil {
		return "", fmt.Errorf("remove build cache: %w", err)
	}
	if _, err := o.runner.Run("npm", []string{"run", "build"}, RunOpts{}); err != nil {
		return "", err
	}
	if _, err := o.runner.Run("go", []string{"build", "-o", "bin/tabela-api", "./cmd/api"}, RunOpts{}); err != nil {
		return "", err
	}
	return "Üretim derlemesi tamamlandı", nil
}

// restartProcesses asks pm2 to restart everything. A failure is downgraded
// to a warning: by this point the new code and schema are already live, and
// the operator can restart by hand.
func (o *Orchestrator) restartProcesses() (string, error) {
	if _, err := o.runner.Run("pm2", []string{"restart", "all"}, RunOpts{}); err != nil {
		return fmt.Sprintf("Uyarı: süreçler yeniden başlatılamadı, manuel yeniden başlatma gerekebilir (%v)", err), nil
	}
	return "Süreçler yeniden başlatıldı", nil
}

// extractArchive unpacks a snapshot archive over the project root. Files
// added after the snapshot are left in place.
func (o *Orchestrator) extractArchive(archivePath string) error {
	_, err := o.runner.Run("tar", []string{"-xzf", archivePath, "-C", o.cfg.ProjectRoot}, RunOpts{})
	return err
}

// applyDump restores a plain SQL dump into the configured database
func (o *Orchestrator) applyDump(dumpPath string) error {
	args := append(o.psqlArgs(), "-f", dumpPath)
	_, err := o.runner.Run("psql", args, RunOpts{Env: []string{"PGPASSWORD=" + o.cfg.DBPassword}})
	return err
}

func (o *Orchestrator) psqlArgs() []string {
	return []string{
		"-h", o.cfg.DBHost,
		"-p", strconv.Itoa(o.cfg.DBPort),
		"-U", o.cfg.DBUser,
		"-d", o.cfg.DBName,
	}
}
