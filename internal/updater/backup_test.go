package updater

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writingHandler fakes tar and pg_dump by writing placeholder files at the
// paths the orchestrator asked for
func writingHandler(t *testing.T, failDump bool) func(string, []string, RunOpts) (CmdResult, error) {
	return func(name string, args []string, opts RunOpts) (CmdResult, error) {
		switch name {
		case "tar":
			// args: -czf <archive> -C <root> ...
			require.Equal(t, "-czf", args[0])
			require.NoError(t, os.WriteFile(args[1], []byte("archive-bytes"), 0644))
			return CmdResult{}, nil
		case "pg_dump":
			if failDump {
				return CmdResult{}, errors.New("connection refused")
			}
			dest := args[len(args)-1]
			require.NoError(t, os.WriteFile(dest, []byte("-- dump\n"), 0644))
			return CmdResult{}, nil
		}
		return CmdResult{}, nil
	}
}

func TestCreateBackupWritesArchiveAndDump(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = writingHandler(t, false)

	res, err := o.CreateBackup("1.2.3", "abcdef0123456789")
	require.NoError(t, err)

	assert.Equal(t, "files.tar.gz", filepath.Base(res.FilePath))
	assert.Equal(t, "database.sql", filepath.Base(res.DBPath))
	assert.Contains(t, filepath.Base(filepath.Dir(res.FilePath)), "_v1.2.3_abcdef01")
	assert.Greater(t, res.SizeBytes, int64(0))

	_, err = os.Stat(res.FilePath)
	assert.NoError(t, err)
	_, err = os.Stat(res.DBPath)
	assert.NoError(t, err)
}

func TestCreateBackupDumpFailureDegradesToFilesOnly(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = writingHandler(t, true)

	res, err := o.CreateBackup("1.2.3", "abcdef0123456789")
	require.NoError(t, err, "a failed dump must not fail the backup")

	assert.Empty(t, res.DBPath)
	_, statErr := os.Stat(res.FilePath)
	assert.NoError(t, statErr, "archive must survive a failed dump")
}

func TestCreateBackupArchiveFailureRemovesDirectory(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == "tar" {
			return CmdResult{}, errors.New("disk full")
		}
		return CmdResult{}, nil
	}

	_, err := o.CreateBackup("1.2.3", "abcdef0123456789")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive working tree")

	entries, readErr := os.ReadDir(o.cfg.BackupDir)
	if readErr == nil {
		assert.Empty(t, entries, "failed backup must not leave a directory behind")
	}
}

func TestCreateBackupExcludesBackupDirInsideRoot(t *testing.T) {
	o, runner := newTestOrchestrator(t)

	var tarArgs []string
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		if name == "tar" {
			tarArgs = args
			require.NoError(t, os.WriteFile(args[1], []byte("x"), 0644))
		}
		return CmdResult{}, nil
	}

	_, err := o.CreateBackup("1.0.0", "aaaa")
	require.NoError(t, err)

	assert.Contains(t, tarArgs, "--exclude=./node_modules")
	assert.Contains(t, tarArgs, "--exclude=./.next")
	assert.Contains(t, tarArgs, "--exclude=./bin")
	assert.Contains(t, tarArgs, "--exclude=./backups", "snapshots must not include the backup root")
}
