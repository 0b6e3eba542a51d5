package gamification

import (
	"testing"

	"github.com/learnquest/backend/internal/models"
)

func keys(defs []AchievementDef) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, d := range defs {
		out[d.Key] = true
	}
	return out
}

func TestCheckAchievements(t *testing.T) {
	tests := []struct {
		name  string
		stats models.LifetimeStats
		owned map[string]bool
		want  []string
	}{
		{"nothing yet", models.LifetimeStats{}, nil, nil},
		{"first attempt", models.LifetimeStats{AttemptsCompleted: 1, QuestionsAnswered: 4, QuestionsCorrect: 1}, nil, []string{"first_attempt"}},
		{"already owned", models.LifetimeStats{AttemptsCompleted: 1}, map[string]bool{"first_attempt": true}, nil},
		{"sharpshooter", models.LifetimeStats{AttemptsCompleted: 2, QuestionsAnswered: 6, QuestionsCorrect: 5}, map[string]bool{"first_attempt": true}, []string{"sharpshooter"}},
		{"accuracy too low", models.LifetimeStats{AttemptsCompleted: 2, QuestionsAnswered: 10, QuestionsCorrect: 7}, map[string]bool{"first_attempt": true}, nil},
		{"ten attempts", models.LifetimeStats{AttemptsCompleted: 10, QuestionsAnswered: 40, QuestionsCorrect: 10}, map[string]bool{"first_attempt": true}, []string{"ten_attempts"}},
	}

	for _, tt := range tests {
		got := keys(CheckAchievements(tt.stats, tt.owned))
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
			continue
		}
		for _, k := range tt.want {
			if !got[k] {
				t.Errorf("%s: missing %s in %v", tt.name, k, got)
			}
		}
	}
}

func TestAchievementKeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Achievements {
		if seen[a.Key] {
			t.Fatalf("duplicate achievement key %q", a.Key)
		}
		seen[a.Key] = true
		if a.XPReward < 0 {
			t.Errorf("%s has negative reward", a.Key)
		}
	}
	if _, ok := AchievementByKey("sharpshooter"); !ok {
		t.Error("AchievementByKey(sharpshooter) not found")
	}
}

func TestBadgeForXP(t *testing.T) {
	tests := []struct {
		xp   int64
		want string
	}{
		{0, ""},
		{99, ""},
		{100, "bronze"},
		{499, "bronze"},
		{500, "silver"},
		{2500, "platinum"},
		{99999, "diamond"},
	}
	for _, tt := range tests {
		got := BadgeForXP(tt.xp)
		gotKey := ""
		if got != nil {
			gotKey = got.Key
		}
		if gotKey != tt.want {
			t.Errorf("BadgeForXP(%d) = %q, want %q", tt.xp, gotKey, tt.want)
		}
	}
}

func TestNewBadge(t *testing.T) {
	if b := NewBadge(90, 105); b == nil || b.Key != "bronze" {
		t.Errorf("NewBadge(90, 105) = %v, want bronze", b)
	}
	if b := NewBadge(120, 140); b != nil {
		t.Errorf("NewBadge(120, 140) = %v, want nil", b)
	}
	if b := NewBadge(10, 20); b != nil {
		t.Errorf("NewBadge(10, 20) = %v, want nil", b)
	}
	if b := NewBadge(450, 1200); b == nil || b.Key != "gold" {
		t.Errorf("NewBadge(450, 1200) = %v, want gold", b)
	}
}
