// Package stats keeps cumulative player results in Redis. Live sessions never
// touch Redis; results arrive only at game over through game.ResultSink.
package stats

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"cardroom.io/server/game"
	"cardroom.io/server/util"
)

var statsLogger = log.With().Str("logger_name", "stats::leaderboard").Logger()

const (
	leaderboardKey      = "leaderboard:score"
	playerStatsKeyPfx   = "player:stats:"
	recordResultTimeout = 3 * time.Second
)

// LeaderboardEntry is one row of the ranked listing.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int64  `json:"score"`
}

// Leaderboard implements game.ResultSink on a Redis sorted set plus one hash
// per player.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard() (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     util.Env.GetRedisAddr(),
		Password: util.Env.GetRedisPW(),
		DB:       util.Env.GetRedisDB(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), recordResultTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Leaderboard{client: client}, nil
}

// NewLeaderboardWithClient is used by tests to point at a fake server.
func NewLeaderboardWithClient(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// RecordResult implements game.ResultSink. Every human seat's final score is
// added to its cumulative total; the winning seat also gets a win credit.
func (lb *Leaderboard) RecordResult(config *game.SessionConfig, terminal *game.TerminalMessage) {
	if config == nil || terminal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordResultTimeout)
	defer cancel()

	for seatNo, sc := range config.Seats {
		if !sc.IsHuman || sc.PlayerID == "" {
			continue
		}
		var delta int32
		if seatNo < len(terminal.FinalScores) {
			delta = terminal.FinalScores[seatNo]
		}

		statsKey := playerStatsKeyPfx + sc.PlayerID
		pipe := lb.client.TxPipeline()
		pipe.ZIncrBy(ctx, leaderboardKey, float64(delta), sc.PlayerID)
		pipe.HSet(ctx, statsKey, "name", sc.Name)
		pipe.HIncrBy(ctx, statsKey, "games", 1)
		if seatNo == terminal.WinnerSeat {
			pipe.HIncrBy(ctx, statsKey, "wins", 1)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			statsLogger.Error().
				Str("playerId", sc.PlayerID).
				Str("sessionCode", config.SessionCode).
				Msgf("Failed to record result: %v", err)
		}
	}
}

// Top returns the highest-scoring players, best first.
func (lb *Leaderboard) Top(ctx context.Context, count int) ([]LeaderboardEntry, error) {
	if count <= 0 {
		count = 10
	}
	members, err := lb.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(count-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, member := range members {
		playerID, _ := member.Member.(string)
		name, err := lb.client.HGet(ctx, playerStatsKeyPfx+playerID, "name").Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: playerID,
			Name:     name,
			Score:    int64(member.Score),
		})
	}
	return entries, nil
}
