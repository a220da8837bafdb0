package run

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// sharedRepoDir is the per-alert checkout every candidate stages from.
const sharedRepoDir = "_shared_repo"

// cloneURL builds the HTTPS clone URL, embedding the token for private
// repositories when one is configured.
func cloneURL(orgRepo, token string) string {
	if token != "" {
		return "https://x-access-token:" + token + "@github.com/" + orgRepo + ".git"
	}
	return "https://github.com/" + orgRepo + ".git"
}

// preCloneRepo clones the repository once under dir so N analysis
// candidates cost one network fetch instead of N. Returns the shared
// checkout path, or "" when cloning failed; candidates then clone for
// themselves and a failed pre-clone never fails the run. An existing
// checkout is reused without contacting the remote.
func (c *Coordinator) preCloneRepo(ctx context.Context, orgRepo, dir string) string {
	repoDir := filepath.Join(dir, sharedRepoDir)
	if _, err := os.Stat(repoDir); err == nil {
		return repoDir
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth=1", cloneURL(orgRepo, c.cfg.GitHubToken), repoDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		c.logger.Warn("pre-clone failed", "org_repo", orgRepo, "error", err,
			"output", truncate(string(out), 200))
		_ = os.RemoveAll(repoDir)
		return ""
	}
	return repoDir
}

// stageRepo checks the shared clone out into one analysis workspace.
// Local clones share object storage, so this is cheap per candidate.
// Returns "" on failure; the candidate then works without the notice.
func (c *Coordinator) stageRepo(ctx context.Context, sharedRepo, workspace, repoName string) string {
	dest := filepath.Join(workspace, repoName)
	cmd := exec.CommandContext(ctx, "git", "clone", sharedRepo, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		c.logger.Warn("stage pre-cloned repo", "workspace", workspace, "error", err,
			"output", truncate(string(out), 200))
		return ""
	}
	return dest
}

// preCloneNotice tells the agent where the staged checkout lives so it
// does not clone a second copy.
func preCloneNotice(repoPath string) string {
	return fmt.Sprintf(
		"## Pre-cloned Repository\n\nThe repository is already checked out at %s/. Do NOT clone it again; work with this checkout.\n",
		repoPath)
}
