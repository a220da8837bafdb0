package agent

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"secretvet/internal/logging"
	"secretvet/internal/session"
)

var phaseDirRe = regexp.MustCompile(`^\d+-`)

// SkillInfo is the metadata of one discovered skill.
type SkillInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Path        string `json:"path"`
	Phase       string `json:"phase,omitempty"`
	SecretType  string `json:"secret_type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Agent       string `json:"agent,omitempty"`
}

// SkillManifest lists every discovered skill, grouped by phase.
type SkillManifest struct {
	Skills      []SkillInfo `json:"skills"`
	Phases      []string    `json:"phases"`
	GeneratedAt string      `json:"generated_at"`
}

// Metas projects the manifest into the collector's tracking shape.
func (m *SkillManifest) Metas() []session.SkillMeta {
	metas := make([]session.SkillMeta, 0, len(m.Skills))
	for _, s := range m.Skills {
		metas = append(metas, session.SkillMeta{Name: s.Name, Phase: s.Phase, Required: s.Required})
	}
	return metas
}

// DiscoverSkills scans a directory tree for SKILL.md files and parses
// their frontmatter. Skills under underscore-prefixed directories are
// internal templates and are skipped. Unparseable files are skipped.
func DiscoverSkills(skillsDir string) []SkillInfo {
	log := logging.New("skills")
	root, err := filepath.Abs(skillsDir)
	if err != nil {
		return nil
	}

	var skills []SkillInfo
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "SKILL.md" {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || hasHiddenComponent(rel) {
			return nil
		}

		content, rerr := os.ReadFile(path)
		if rerr != nil {
			log.Debug("failed to read skill", "path", path, "error", rerr)
			return nil
		}
		meta, _ := SplitFrontmatter(string(content))

		name := metaString(meta, "name")
		if name == "" {
			name = filepath.Base(filepath.Dir(path))
		}
		phase := metaString(meta, "phase")
		if phase == "" {
			phase = inferPhase(rel)
		}
		agentType := metaString(meta, "agent")
		if agentType == "" {
			agentType = "analysis"
		}
		skills = append(skills, SkillInfo{
			Name:        name,
			Description: metaString(meta, "description"),
			Path:        path,
			Phase:       phase,
			SecretType:  metaString(meta, "secret-type", "secret_type"),
			Required:    metaBool(meta, "required"),
			Agent:       agentType,
		})
		return nil
	})

	sort.Slice(skills, func(i, j int) bool {
		pi, pj := skills[i].Phase, skills[j].Phase
		if pi == "" {
			pi = "z"
		}
		if pj == "" {
			pj = "z"
		}
		if pi != pj {
			return pi < pj
		}
		return skills[i].Name < skills[j].Name
	})
	return skills
}

// DiscoverHiddenSkills returns the names of skills living under
// underscore-prefixed directories. These are disabled for sessions so
// agents cannot load internal templates.
func DiscoverHiddenSkills(skillsDir string) []string {
	root, err := filepath.Abs(skillsDir)
	if err != nil {
		return nil
	}

	var hidden []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "SKILL.md" {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || !hasHiddenComponent(rel) {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		meta, _ := SplitFrontmatter(string(content))
		name := metaString(meta, "name")
		if name == "" {
			name = filepath.Base(filepath.Dir(path))
		}
		hidden = append(hidden, name)
		return nil
	})
	return hidden
}

// BuildSkillManifest merges discovery over several skill roots.
func BuildSkillManifest(skillsDirs []string) *SkillManifest {
	var all []SkillInfo
	for _, dir := range skillsDirs {
		all = append(all, DiscoverSkills(dir)...)
	}

	phaseSet := map[string]bool{}
	for _, s := range all {
		if s.Phase != "" {
			phaseSet[s.Phase] = true
		}
	}
	phases := make([]string, 0, len(phaseSet))
	for p := range phaseSet {
		phases = append(phases, p)
	}
	sort.Strings(phases)

	return &SkillManifest{
		Skills:      all,
		Phases:      phases,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// DiscoverSkillDirs resolves the skill directories for one agent type.
// Analysis skills are organized in phase subdirectories; challenger and
// judge roots are flat. Additional configured roots are appended after
// deduplication; missing paths are dropped.
func DiscoverSkillDirs(skillsBase, agentType string, additional []string) []string {
	agentRoot := filepath.Join(skillsBase, agentType)
	seen := map[string]bool{}
	var dirs []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			dirs = append(dirs, p)
		}
	}

	if agentType == "analysis" {
		entries, err := os.ReadDir(agentRoot)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() && !strings.HasPrefix(e.Name(), "_") {
					if abs, aerr := filepath.Abs(filepath.Join(agentRoot, e.Name())); aerr == nil {
						add(abs)
					}
				}
			}
		}
	} else if hasSkillChildren(agentRoot) {
		if abs, err := filepath.Abs(agentRoot); err == nil {
			add(abs)
		}
	}

	absRoot, _ := filepath.Abs(agentRoot)
	for _, d := range additional {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() || abs == absRoot {
			continue
		}
		add(abs)
	}
	return dirs
}

// FormatManifestForContext renders the manifest as markdown for
// inclusion in the analysis prompt.
func FormatManifestForContext(m *SkillManifest) string {
	var b strings.Builder
	b.WriteString("# Available Skills\n\n")
	b.WriteString("Use the `skill` tool to load guidance as needed. Skills marked ")
	b.WriteString("**REQUIRED** must be loaded before proceeding with that phase.\n\n")

	writeSkill := func(s SkillInfo) {
		b.WriteString("- `skill(\"" + s.Name + "\")`: " + s.Description)
		if s.Required {
			b.WriteString(" **REQUIRED**")
		}
		b.WriteString("\n")
	}

	for _, phase := range m.Phases {
		var phaseSkills []SkillInfo
		for _, s := range m.Skills {
			if s.Phase == phase {
				phaseSkills = append(phaseSkills, s)
			}
		}
		if len(phaseSkills) == 0 {
			continue
		}
		b.WriteString("## " + formatPhaseHeader(phase) + "\n\n")
		for _, s := range phaseSkills {
			writeSkill(s)
		}
		b.WriteString("\n")
	}

	var phaseless []SkillInfo
	for _, s := range m.Skills {
		if s.Phase == "" {
			phaseless = append(phaseless, s)
		}
	}
	if len(phaseless) > 0 {
		b.WriteString("## Other Skills\n\n")
		for _, s := range phaseless {
			writeSkill(s)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// formatPhaseHeader turns "1-initialization" into "Phase 1: Initialization".
func formatPhaseHeader(phase string) string {
	if phaseDirRe.MatchString(phase) {
		num, rest, _ := strings.Cut(phase, "-")
		return "Phase " + num + ": " + titleWords(strings.ReplaceAll(rest, "-", " "))
	}
	return titleWords(strings.ReplaceAll(phase, "-", " "))
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func inferPhase(rel string) string {
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) > 1 && phaseDirRe.MatchString(parts[0]) {
		return parts[0]
	}
	return ""
}

func hasHiddenComponent(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, "_") {
			return true
		}
	}
	return false
}

func hasSkillChildren(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), "SKILL.md")); err == nil {
			return true
		}
	}
	return false
}
