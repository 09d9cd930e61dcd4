package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var disconnectLogger = log.With().Str("logger_name", "game::disconnect").Logger()

// DisconnectRecord tracks one human seat that lost its connection. Records
// are keyed by player identity, not seat, so the same identity can reclaim a
// seat that was temporarily AI-controlled in the meantime.
type DisconnectRecord struct {
	PlayerID       string
	SessionCode    string
	SeatNo         int
	DisconnectedAt time.Time

	graceTimer *time.Timer
}

// DisconnectRegistry holds the disconnect records of every session on this
// server. A record is honored for the configured grace period; on expiry the
// seat is handed to AI for good and the record is discarded.
type DisconnectRegistry struct {
	mu      sync.Mutex
	records map[string]*DisconnectRecord
	grace   time.Duration

	// onExpire runs on grace expiry, after the record has been removed. It is
	// called from a timer goroutine and must route through the owning
	// session's command queue.
	onExpire func(rec DisconnectRecord)
}

func NewDisconnectRegistry(grace time.Duration, onExpire func(rec DisconnectRecord)) *DisconnectRegistry {
	return &DisconnectRegistry{
		records:  make(map[string]*DisconnectRecord),
		grace:    grace,
		onExpire: onExpire,
	}
}

// MarkDisconnected records the drop and starts the grace timer. Marking an
// already-recorded identity refreshes the record but keeps the original
// disconnect time.
func (r *DisconnectRegistry) MarkDisconnected(playerID string, sessionCode string, seatNo int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := time.Now()
	if prev, ok := r.records[playerID]; ok {
		prev.graceTimer.Stop()
		at = prev.DisconnectedAt
	}

	rec := &DisconnectRecord{
		PlayerID:       playerID,
		SessionCode:    sessionCode,
		SeatNo:         seatNo,
		DisconnectedAt: at,
	}
	rec.graceTimer = time.AfterFunc(r.grace, func() {
		r.expire(playerID)
	})
	r.records[playerID] = rec

	disconnectLogger.Info().
		Str("sessionCode", sessionCode).
		Str("playerID", playerID).
		Int("seatNo", seatNo).
		Msgf("Player disconnected. Holding seat for %.0f seconds", r.grace.Seconds())
}

// Resolve removes and returns the record for a reconnecting identity. The
// second return is false when no record exists (expired, or never recorded).
func (r *DisconnectRegistry) Resolve(playerID string) (DisconnectRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[playerID]
	if !ok {
		return DisconnectRecord{}, false
	}
	rec.graceTimer.Stop()
	delete(r.records, playerID)
	return *rec, true
}

// Get peeks at a record without removing it.
func (r *DisconnectRegistry) Get(playerID string) (DisconnectRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[playerID]
	if !ok {
		return DisconnectRecord{}, false
	}
	return *rec, true
}

func (r *DisconnectRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *DisconnectRegistry) expire(playerID string) {
	r.mu.Lock()
	rec, ok := r.records[playerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.records, playerID)
	r.mu.Unlock()

	disconnectLogger.Info().
		Str("sessionCode", rec.SessionCode).
		Str("playerID", playerID).
		Int("seatNo", rec.SeatNo).
		Msg("Reconnect grace period expired. Seat goes to AI permanently")

	if r.onExpire != nil {
		r.onExpire(*rec)
	}
}
