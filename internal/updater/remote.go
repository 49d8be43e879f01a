package updater

import (
	"fmt"
	"strconv"
	"strings"
)

// RemoteCommit is one pending upstream commit, newest first
type RemoteCommit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Date    string `json:"date"`
	Author  string `json:"author"`
}

// RemoteStatus is the result of comparing the local checkout against a remote
type RemoteStatus struct {
	Ahead            int            `json:"ahead"`
	Commits          []RemoteCommit `json:"commits"`
	LatestRemoteHash string         `json:"latest_remote_hash"`
}

// FetchRemoteCommits fetches the remote branch into FETCH_HEAD and lists the
// commits the local checkout is missing, newest first. It never touches the
// working tree or the current branch pointer, so it is safe to poll.
func (o *Orchestrator) FetchRemoteCommits(repoURL, branch string) (*RemoteStatus, error) {
	if _, err := o.runner.Run("git", []string{"fetch", repoURL, branch}, RunOpts{}); err != nil {
		return nil, fmt.Errorf("fetch remote: %w", err)
	}

	res, err := o.runner.Run("git", []string{"rev-list", "--count", "HEAD..FETCH_HEAD"}, RunOpts{})
	if err != nil {
		return nil, fmt.Errorf("count pending commits: %w", err)
	}
	ahead, err := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("parse pending commit count %q: %w", strings.TrimSpace(res.Stdout), err)
	}

	status := &RemoteStatus{Ahead: ahead, Commits: []RemoteCommit{}}

	if ahead > 0 {
		res, err = o.runner.Run("git", []string{"log", "HEAD..FETCH_HEAD", "--pretty=format:%H|%s|%cI|%an"}, RunOpts{})
		if err != nil {
			return nil, fmt.Errorf("list pending commits: %w", err)
		}
		for _, line := range strings.Split(res.Stdout, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, "|", 4)
			if len(parts) != 4 {
				continue
			}
			status.Commits = append(status.Commits, RemoteCommit{
				Hash:    parts[0],
				Message: parts[1],
				Date:    parts[2],
				Author:  parts[3],
			})
		}
		if len(status.Commits) > 0 {
			status.LatestRemoteHash = status.Commits[0].Hash
		}
	}

	if status.LatestRemoteHash == "" {
		// No new commits: resolve the tip from the fetch head itself
		res, err = o.runner.Run("git", []string{"rev-parse", "FETCH_HEAD"}, RunOpts{})
		if err != nil {
			return nil, fmt.Errorf("resolve remote tip: %w", err)
		}
		status.LatestRemoteHash = strings.TrimSpace(res.Stdout)
	}

	return status, nil
}
