package staff

import (
	"strings"
	"time"
)

// SkillLevel is the optional proficiency attached to a staff skill.
type SkillLevel string

const (
	LevelBeginner     SkillLevel = "beginner"
	LevelIntermediate SkillLevel = "intermediate"
	LevelAdvanced     SkillLevel = "advanced"
	LevelExpert       SkillLevel = "expert"
)

type Skill struct {
	Label string
	Level SkillLevel
}

// Slug normalizes a skill label for matching: lower-cased, spaces and
// underscores collapsed to hyphens.
func Slug(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), "-")
}

// Member is a read-only snapshot of a staff member owned by the external
// directory.
type Member struct {
	ID       int64
	Name     string
	TimeZone string
	Skills   []Skill
	Weight   int
	Cooldown time.Duration
	Active   bool
}

// Location resolves the member's IANA timezone, defaulting to UTC when the
// directory holds a zone this host cannot load.
func (m Member) Location() *time.Location {
	if m.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FindSkill matches a required skill by exact label or normalized slug.
func (m Member) FindSkill(required string) (Skill, bool) {
	want := Slug(required)
	for _, sk := range m.Skills {
		if sk.Label == required || Slug(sk.Label) == want {
			return sk, true
		}
	}
	return Skill{}, false
}

// HasAllSkills reports whether the member covers every required skill.
func (m Member) HasAllSkills(required []string) bool {
	for _, r := range required {
		if _, ok := m.FindSkill(r); !ok {
			return false
		}
	}
	return true
}
