package stats

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardroom.io/server/game"
)

func newTestLeaderboard(t *testing.T) (*Leaderboard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLeaderboardWithClient(client), mr
}

func sessionOf(code string, humans ...string) *game.SessionConfig {
	seats := make([]game.SeatConfig, 0, 4)
	for _, id := range humans {
		seats = append(seats, game.SeatConfig{PlayerID: id, Name: "Player " + id, IsHuman: true})
	}
	for len(seats) < 4 {
		seats = append(seats, game.SeatConfig{Name: "Bot"})
	}
	return &game.SessionConfig{SessionCode: code, Variant: "whist", Seats: seats}
}

func TestRecordResultAccumulatesScores(t *testing.T) {
	t.Parallel()

	lb, mr := newTestLeaderboard(t)
	defer mr.Close()
	ctx := context.Background()

	lb.RecordResult(sessionOf("S1", "alice", "bob"), &game.TerminalMessage{
		WinnerSeat:  0,
		FinalScores: []int32{5, 3, 2, 1},
		RoundsDealt: 6,
	})
	lb.RecordResult(sessionOf("S2", "alice", "bob"), &game.TerminalMessage{
		WinnerSeat:  1,
		FinalScores: []int32{2, 5, 1, 0},
		RoundsDealt: 5,
	})

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, "bob", top[0].PlayerID)
	assert.Equal(t, int64(8), top[0].Score)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "Player bob", top[0].Name)

	assert.Equal(t, "alice", top[1].PlayerID)
	assert.Equal(t, int64(7), top[1].Score)
	assert.Equal(t, 2, top[1].Rank)
}

func TestRecordResultSkipsAISeats(t *testing.T) {
	t.Parallel()

	lb, mr := newTestLeaderboard(t)
	defer mr.Close()
	ctx := context.Background()

	lb.RecordResult(sessionOf("S1", "carol"), &game.TerminalMessage{
		WinnerSeat:  3,
		FinalScores: []int32{1, 9, 9, 9},
		RoundsDealt: 3,
	})

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "carol", top[0].PlayerID)
	assert.Equal(t, int64(1), top[0].Score)
}

func TestRecordResultCountsWins(t *testing.T) {
	t.Parallel()

	lb, mr := newTestLeaderboard(t)
	defer mr.Close()

	lb.RecordResult(sessionOf("S1", "dave", "erin"), &game.TerminalMessage{
		WinnerSeat:  0,
		FinalScores: []int32{4, 2, 0, 0},
	})

	assert.Equal(t, "1", mr.HGet("player:stats:dave", "wins"))
	assert.Equal(t, "1", mr.HGet("player:stats:dave", "games"))
	assert.Equal(t, "", mr.HGet("player:stats:erin", "wins"))
	assert.Equal(t, "1", mr.HGet("player:stats:erin", "games"))
}

func TestTopHandlesEmptyBoard(t *testing.T) {
	t.Parallel()

	lb, mr := newTestLeaderboard(t)
	defer mr.Close()

	top, err := lb.Top(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}
