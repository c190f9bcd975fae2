package pool

import "time"

// Entry is the serialized snapshot of a session held in the waiting pool
// while the session seeks a partner.
type Entry struct {
	SessionID  string    `json:"sessionId"`
	Country    string    `json:"country,omitempty"`
	Interests  []string  `json:"interests,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Score rates how well two waiting sessions match: +2 for an equal country
// code, +1 for every distinct interest tag they share. Zero is still a valid
// match; the score only orders preference.
func Score(a, b Entry) int {
	score := 0
	if a.Country == b.Country {
		score += 2
	}
	want := make(map[string]bool, len(a.Interests))
	for _, tag := range a.Interests {
		want[tag] = true
	}
	counted := make(map[string]bool, len(b.Interests))
	for _, tag := range b.Interests {
		if want[tag] && !counted[tag] {
			score++
			counted[tag] = true
		}
	}
	return score
}
