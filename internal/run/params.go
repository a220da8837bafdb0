// Package run drives one validation run end to end: N analysis tasks,
// N adversarial challenge tasks, and one judge pass, under bounded
// concurrency with strict stage barriers.
package run

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	orgRepoRe  = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	alertIDRe  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	safeSlugRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// Params is the validated identity of one run. Construct via NewParams;
// read-only afterward. Slug methods are safe for filesystem use.
type Params struct {
	OrgRepo string
	AlertID string
}

// NewParams validates the repository and alert identifiers. Both patterns
// reject path separators and anything else traversal-unsafe, so the
// failure happens before any remote call or directory creation.
func NewParams(orgRepo, alertID string) (Params, error) {
	if !orgRepoRe.MatchString(orgRepo) {
		return Params{}, fmt.Errorf("org_repo %q must be owner/repo with safe characters", orgRepo)
	}
	if !alertIDRe.MatchString(alertID) {
		return Params{}, fmt.Errorf("alert_id %q must contain only alphanumerics, _, ., -", alertID)
	}
	return Params{OrgRepo: orgRepo, AlertID: alertID}, nil
}

// Owner returns the repository owner half of OrgRepo.
func (p Params) Owner() string {
	owner, _, _ := strings.Cut(p.OrgRepo, "/")
	return owner
}

// Repo returns the repository name half of OrgRepo.
func (p Params) Repo() string {
	_, repo, _ := strings.Cut(p.OrgRepo, "/")
	return repo
}

// OrgRepoSlug returns the sanitized owner/repo relative path.
func (p Params) OrgRepoSlug() string {
	return filepath.Join(slugify(p.Owner()), slugify(p.Repo()))
}

// AlertIDSlug returns the sanitized alert id.
func (p Params) AlertIDSlug() string {
	return slugify(p.AlertID)
}

// SessionIDPrefix returns a sanitized session id prefix, capped at 64
// characters to fit transport-side identifier limits.
func (p Params) SessionIDPrefix() string {
	safe := slugify(p.Owner() + "_" + p.Repo() + "_" + p.AlertIDSlug())
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return safe
}

func slugify(v string) string {
	slug := strings.Trim(safeSlugRe.ReplaceAllString(v, "_"), "_")
	if slug == "" {
		return "default"
	}
	return slug
}
