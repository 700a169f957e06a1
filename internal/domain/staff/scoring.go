package staff

import (
	"sort"
	"time"
)

const (
	baseScore       = 100
	weightStep      = 10
	skillMatchBonus = 20
	fullMatchBonus  = 50
	cooldownPenalty = 25
)

var levelBonus = map[SkillLevel]int{
	LevelBeginner:     5,
	LevelIntermediate: 10,
	LevelAdvanced:     15,
	LevelExpert:       20,
}

// Score ranks a member for a set of required skills. lastAssigned is the
// creation time of the member's most recent active booking; nil means the
// member has never been assigned.
func Score(m Member, requiredSkills []string, lastAssigned *time.Time, now time.Time) int {
	score := baseScore
	score += (m.Weight - 1) * weightStep

	matched := 0
	for _, req := range requiredSkills {
		sk, ok := m.FindSkill(req)
		if !ok {
			continue
		}
		matched++
		score += skillMatchBonus
		score += levelBonus[sk.Level]
	}
	if len(requiredSkills) > 0 && matched == len(requiredSkills) {
		score += fullMatchBonus
	}

	if m.Cooldown > 0 && lastAssigned != nil && now.Sub(*lastAssigned) < m.Cooldown {
		score -= cooldownPenalty
	}
	return score
}

// RankCandidates orders members by descending score, breaking ties by lowest
// staff id so selection is deterministic.
func RankCandidates(members []Member, requiredSkills []string, lastAssigned map[int64]time.Time, now time.Time) []Member {
	ranked := make([]Member, len(members))
	copy(ranked, members)

	scores := make(map[int64]int, len(ranked))
	for _, m := range ranked {
		var last *time.Time
		if ts, ok := lastAssigned[m.ID]; ok {
			t := ts
			last = &t
		}
		scores[m.ID] = Score(m, requiredSkills, last, now)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i].ID] != scores[ranked[j].ID] {
			return scores[ranked[i].ID] > scores[ranked[j].ID]
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
