package domain

import "time"

// GlobalEntry is one row of the global leaderboard, ordered by total
// points descending. Rank is competition-style: users with equal points
// share the rank implied by counting strictly-higher totals.
type GlobalEntry struct {
	Rank        int64  `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	TotalPoints int64  `json:"total_points"`
}

// GameEntry is one row of a per-game leaderboard, ordered by final
// score descending with ties broken by earliest creation time.
type GameEntry struct {
	Rank       int64     `json:"rank"`
	ScoreID    string    `json:"score_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	FinalScore int64     `json:"final_score"`
	CreatedAt  time.Time `json:"created_at"`
}

// RankGlobalEntries assigns competition-style ranks to entries already
// sorted by total points descending
func RankGlobalEntries(entries []GlobalEntry) {
	for i := range entries {
		if i > 0 && entries[i].TotalPoints == entries[i-1].TotalPoints {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = int64(i + 1)
	}
}
