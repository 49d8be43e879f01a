package updater

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// VersionInfo describes the currently deployed code. Computed on demand,
// never persisted.
type VersionInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	CommitDate string `json:"commit_date"`
	Branch     string `json:"branch"`
}

// CurrentVersion inspects the local checkout. It never fails: any field it
// cannot determine stays at its default.
func (o *Orchestrator) CurrentVersion() VersionInfo {
	info := VersionInfo{
		Version:    "0.0.0",
		CommitHash: "unknown",
		CommitDate: time.Now().UTC().Format(time.RFC3339),
		Branch:     "main",
	}

	// Version string from the frontend manifest
	if data, err := os.ReadFile(filepath.Join(o.cfg.ProjectRoot, "package.json")); err == nil {
		var manifest struct {
			Version string `json:"version"`
		}
		if json.Unmarshal(data, &manifest) == nil && manifest.Version != "" {
			info.Version = manifest.Version
		}
	}

	// Latest revision hash and author date in one call
	if res, err := o.runner.Run("git", []string{"log", "-1", "--pretty=format:%H|%cI"}, RunOpts{}); err == nil {
		parts := strings.SplitN(strings.TrimSpace(res.Stdout), "|", 2)
		if len(parts) == 2 && parts[0] != "" {
			info.CommitHash = parts[0]
			info.CommitDate = parts[1]
		}
	}

	// Current branch name
	if res, err := o.runner.Run("git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, RunOpts{}); err == nil {
		if branch := strings.TrimSpace(res.Stdout); branch != "" {
			info.Branch = branch
		}
	}

	return info
}
