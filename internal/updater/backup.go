package updater

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BackupResult describes a freshly written snapshot. The caller persists it
// as a models.Backup row.
type BackupResult struct {
	FilePath  string // compressed working tree archive
	DBPath    string // plain SQL dump, empty when the dump failed
	SizeBytes int64
}

// CreateBackup writes a point-in-time snapshot of the deployment: a
// compressed archive of the working tree plus a best-effort logical database
// dump, in a timestamped directory under the backup root. Archive failure is
// fatal; dump failure degrades to a files-only backup.
func (o *Orchestrator) CreateBackup(version, commitHash string) (*BackupResult, error) {
	shortHash := commitHash
	if len(shortHash) > 8 {
		shortHash = shortHash[:8]
	}
	dirName := fmt.Sprintf("%s_v%s_%s", time.Now().Format("20060102-150405"), version, shortHash)
	dir := filepath.Join(o.cfg.BackupDir, dirName)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	archivePath := filepath.Join(dir, "files.tar.gz")

	// Exclude dependency and build caches, and the backups directory itself
	// so snapshots never snapshot snapshots.
	excludes := []string{"node_modules", ".next", "bin"}
	if rel, err := filepath.Rel(o.cfg.ProjectRoot, o.cfg.BackupDir); err == nil && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, rel)
	}

	args := []string{"-czf", archivePath, "-C", o.cfg.ProjectRoot}
	for _, e := range excludes {
		args = append(args, "--exclude=./"+e)
	}
	args = append(args, ".")

	if _, err := o.runner.Run("tar", args, RunOpts{}); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("archive working tree: %w", err)
	}

	// Best-effort logical dump. A missing dump is an acceptable degraded
	// backup; rollback treats it as files-only.
	dumpPath := filepath.Join(dir, "database.sql")
	_, err := o.runner.Run("pg_dump",
		[]string{
			"-h", o.cfg.DBHost,
			"-p", strconv.Itoa(o.cfg.DBPort),
			"-U", o.cfg.DBUser,
			"-d", o.cfg.DBName,
			"--no-owner",
			"--no-acl",
			"-f", dumpPath,
		},
		RunOpts{Env: []string{"PGPASSWORD=" + o.cfg.DBPassword}},
	)
	if err != nil {
		log.Printf("Backup: database dump failed, keeping files-only backup: %v", err)
		os.Remove(dumpPath)
		dumpPath = ""
	}

	result := &BackupResult{FilePath: archivePath, DBPath: dumpPath}
	if info, err := os.Stat(archivePath); err == nil {
		result.SizeBytes += info.Size()
	}
	if dumpPath != "" {
		if info, err := os.Stat(dumpPath); err == nil {
			result.SizeBytes += info.Size()
		}
	}

	return result, nil
}
