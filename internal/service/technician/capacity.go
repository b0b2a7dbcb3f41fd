package technician

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jwalitptl/repair-desk/internal/model"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

// genericSkills match any equipment type.
var genericSkills = map[string]bool{
	"all":         true,
	"general":     true,
	"all-rounder": true,
	"any":         true,
}

// Assignment rejection reasons, used as metric labels.
const (
	ReasonCapacity    = "capacity_exceeded"
	ReasonUnavailable = "unavailable"
	ReasonSkill       = "skill_mismatch"
)

// CheckAssignable verifies a technician can take one more repair. Load is
// checked before the availability flag so a full technician reports
// CapacityExceeded.
func CheckAssignable(t *model.Technician, active int, equipmentType string) error {
	if active >= model.MaxActiveRepairs {
		return apperrors.CapacityExceeded(fmt.Sprintf(
			"technician already has %d active repairs (max %d)", active, model.MaxActiveRepairs))
	}
	if !t.Available {
		return apperrors.Unavailable("technician is not available")
	}
	if !SkillMatches(t.Skills, equipmentType) {
		return apperrors.SkillMismatch(fmt.Sprintf("technician skills do not cover %q", equipmentType))
	}
	return nil
}

// RejectionReason maps a CheckAssignable error onto a metric label.
func RejectionReason(err error) string {
	switch {
	case apperrors.HasCode(err, apperrors.ErrCapacityExceeded):
		return ReasonCapacity
	case apperrors.HasCode(err, apperrors.ErrUnavailable):
		return ReasonUnavailable
	case apperrors.HasCode(err, apperrors.ErrSkillMismatch):
		return ReasonSkill
	}
	return "other"
}

// domainWords appear in most equipment names and say nothing about the
// skill needed.
var domainWords = map[string]bool{
	"cricket":   true,
	"equipment": true,
	"gear":      true,
	"kit":       true,
	"repair":    true,
	"repairs":   true,
}

// SkillMatches reports whether any skill covers the equipment type. Skills
// and equipment names are compared word by word, case-insensitively and
// ignoring plurals, on words of three letters or more other than domainWords.
// A technician without skills, or an unspecified equipment type, always
// matches.
func SkillMatches(skills []string, equipmentType string) bool {
	if len(skills) == 0 || strings.TrimSpace(equipmentType) == "" {
		return true
	}
	keywords := make(map[string]bool)
	for _, kw := range keywordsOf(equipmentType) {
		keywords[kw] = true
	}
	for _, raw := range skills {
		skill := strings.ToLower(strings.TrimSpace(raw))
		if genericSkills[skill] {
			return true
		}
		for _, word := range keywordsOf(skill) {
			if keywords[word] {
				return true
			}
		}
	}
	return false
}

// keywordsOf splits s into singular lowercase words that can identify a
// piece of equipment.
func keywordsOf(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || domainWords[f] {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}
