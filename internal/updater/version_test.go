package updater

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentVersionDefaults(t *testing.T) {
	o, runner := newTestOrchestrator(t)
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		return CmdResult{}, errors.New("not a git repository")
	}

	info := o.CurrentVersion()
	assert.Equal(t, "0.0.0", info.Version)
	assert.Equal(t, "unknown", info.CommitHash)
	assert.Equal(t, "main", info.Branch)
	assert.NotEmpty(t, info.CommitDate)
}

func TestCurrentVersionReadsManifestAndGit(t *testing.T) {
	o, runner := newTestOrchestrator(t)

	manifest := []byte(`{"name": "pars-tabela", "version": "2.4.1"}`)
	require.NoError(t, os.WriteFile(filepath.Join(o.cfg.ProjectRoot, "package.json"), manifest, 0644))

	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		switch args[0] {
		case "log":
			return CmdResult{Stdout: "a1b2c3d4e5f6|2026-08-20T10:00:00+03:00\n"}, nil
		case "rev-parse":
			return CmdResult{Stdout: "release\n"}, nil
		}
		return CmdResult{}, nil
	}

	info := o.CurrentVersion()
	assert.Equal(t, "2.4.1", info.Version)
	assert.Equal(t, "a1b2c3d4e5f6", info.CommitHash)
	assert.Equal(t, "2026-08-20T10:00:00+03:00", info.CommitDate)
	assert.Equal(t, "release", info.Branch)
}

func TestCurrentVersionIgnoresBrokenManifest(t *testing.T) {
	o, runner := newTestOrchestrator(t)

	require.NoError(t, os.WriteFile(filepath.Join(o.cfg.ProjectRoot, "package.json"), []byte("{not json"), 0644))
	runner.handler = func(name string, args []string, opts RunOpts) (CmdResult, error) {
		return CmdResult{}, errors.New("fail")
	}

	info := o.CurrentVersion()
	assert.Equal(t, "0.0.0", info.Version)
}
