package session

import (
	"sort"
	"time"
)

// SkillLoadStatus is the outcome of one skill load attempt.
type SkillLoadStatus string

const (
	SkillLoaded   SkillLoadStatus = "loaded"
	SkillFailed   SkillLoadStatus = "failed"
	SkillDisabled SkillLoadStatus = "disabled"
	SkillNotFound SkillLoadStatus = "not_found"
)

// SkillMeta is the manifest metadata the collector needs about one skill.
type SkillMeta struct {
	Name     string
	Phase    string
	Required bool
}

// SkillLoadEvent records a single skill load attempt.
type SkillLoadEvent struct {
	SkillName    string          `json:"skill_name"`
	Status       SkillLoadStatus `json:"status"`
	Timestamp    string          `json:"timestamp"`
	Phase        string          `json:"phase,omitempty"`
	IsRequired   bool            `json:"is_required"`
	ErrorMessage string          `json:"error_message,omitempty"`
	DurationMS   float64         `json:"duration_ms,omitempty"`
}

// SkillUsageStats tracks which skills were available, required, disabled,
// and actually loaded during a session. The judge weighs the resulting
// compliance score alongside report prose.
type SkillUsageStats struct {
	AvailableSkills []string         `json:"available_skills"`
	RequiredSkills  []string         `json:"required_skills"`
	DisabledSkills  []string         `json:"disabled_skills"`
	LoadedSkills    []string         `json:"loaded_skills"`
	FailedSkills    []string         `json:"failed_skills"`
	SkippedRequired []string         `json:"skipped_required"`
	LoadEvents      []SkillLoadEvent `json:"load_events"`

	phaseMap map[string]string
}

// NewSkillUsageStats seeds tracking state from manifest metadata.
func NewSkillUsageStats(skills []SkillMeta, disabled []string) *SkillUsageStats {
	s := &SkillUsageStats{
		DisabledSkills: append([]string(nil), disabled...),
		phaseMap:       make(map[string]string),
	}
	for _, sk := range skills {
		s.AvailableSkills = append(s.AvailableSkills, sk.Name)
		if sk.Required {
			s.RequiredSkills = append(s.RequiredSkills, sk.Name)
		}
		if sk.Phase != "" {
			s.phaseMap[sk.Name] = sk.Phase
		}
	}
	return s
}

// AddLoadEvent records one load attempt and updates the loaded/failed lists.
func (s *SkillUsageStats) AddLoadEvent(name string, status SkillLoadStatus, phase string, required bool, errMsg string, durationMS float64) {
	s.LoadEvents = append(s.LoadEvents, SkillLoadEvent{
		SkillName:    name,
		Status:       status,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Phase:        phase,
		IsRequired:   required,
		ErrorMessage: errMsg,
		DurationMS:   durationMS,
	})
	switch status {
	case SkillLoaded:
		if !contains(s.LoadedSkills, name) {
			s.LoadedSkills = append(s.LoadedSkills, name)
		}
	case SkillFailed, SkillNotFound:
		if !contains(s.FailedSkills, name) {
			s.FailedSkills = append(s.FailedSkills, name)
		}
	}
}

// Finalize computes derived fields. Call once after the session ends.
func (s *SkillUsageStats) Finalize() {
	s.SkippedRequired = nil
	for _, name := range s.RequiredSkills {
		if !contains(s.LoadedSkills, name) {
			s.SkippedRequired = append(s.SkippedRequired, name)
		}
	}
	sort.Strings(s.SkippedRequired)
}

// ComplianceScore is the percentage of required skills that loaded;
// 100 when nothing is required.
func (s *SkillUsageStats) ComplianceScore() float64 {
	if len(s.RequiredSkills) == 0 {
		return 100.0
	}
	loaded := 0
	for _, name := range s.RequiredSkills {
		if contains(s.LoadedSkills, name) {
			loaded++
		}
	}
	return float64(loaded) / float64(len(s.RequiredSkills)) * 100
}

// LoadedByPhase groups successfully loaded skills by workflow phase.
func (s *SkillUsageStats) LoadedByPhase() map[string][]string {
	result := make(map[string][]string)
	for _, ev := range s.LoadEvents {
		if ev.Status == SkillLoaded && ev.Phase != "" {
			result[ev.Phase] = append(result[ev.Phase], ev.SkillName)
		}
	}
	return result
}

// AvailableByPhase groups manifest skills by workflow phase.
func (s *SkillUsageStats) AvailableByPhase() map[string][]string {
	result := make(map[string][]string)
	for _, name := range s.AvailableSkills {
		if phase, ok := s.phaseMap[name]; ok {
			result[phase] = append(result[phase], name)
		}
	}
	return result
}

// Phase returns the manifest phase for a skill, if known.
func (s *SkillUsageStats) Phase(name string) string {
	if s.phaseMap == nil {
		return ""
	}
	return s.phaseMap[name]
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
