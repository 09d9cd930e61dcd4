package nats

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"cardroom.io/server/game"
)

// NatsTable is an adapter that interacts with the NATS server and passes
// player messages to the session layer.

// For each table we listen on one subject for incoming player messages:
// table.<code>.player2table
//
// Outgoing traffic uses two subjects:
// table.<code>.table2all       broadcasts (seat updates, timeouts, game over)
// table2player.<playerId>      per-player pushes (filtered state, turn notices)

var natsLogger = log.With().Str("logger_name", "nats::table").Logger()

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Resync is always accepted by the session, so the transport edge throttles
// clients that hammer it.
const (
	resyncBurst       = 3
	resyncPerSecond   = 0.5
	resyncLimiterSize = 1024
)

type NatsTable struct {
	sessionCode string

	table2AllPlayersSubject  string
	player2TableSubscription *natsgo.Subscription
	natsConn                 *natsgo.Conn

	manager *game.Manager

	resyncMutex    sync.Mutex
	resyncLimiters map[string]*rate.Limiter
}

func newNatsTable(nc *natsgo.Conn, manager *game.Manager, sessionCode string) (*NatsTable, error) {
	t := &NatsTable{
		sessionCode:             sessionCode,
		table2AllPlayersSubject: GetTable2AllPlayersSubject(sessionCode),
		natsConn:                nc,
		manager:                 manager,
		resyncLimiters:          make(map[string]*rate.Limiter),
	}

	player2TableSubject := GetPlayer2TableSubject(sessionCode)
	var e error
	t.player2TableSubscription, e = nc.Subscribe(player2TableSubject, t.player2Table)
	if e != nil {
		natsLogger.Error().Msg(fmt.Sprintf("Failed to subscribe to %s", player2TableSubject))
		return nil, e
	}
	return t, nil
}

func (t *NatsTable) cleanup() {
	if t.player2TableSubscription != nil {
		t.player2TableSubscription.Unsubscribe()
		t.player2TableSubscription = nil
	}
}

// player2Table is the single inbound handler for this table. Every message is
// routed through the manager so that stale session codes get the session-lost
// answer instead of being dropped here.
func (t *NatsTable) player2Table(msg *natsgo.Msg) {
	var message game.PlayerMessage
	if err := json.Unmarshal(msg.Data, &message); err != nil {
		natsLogger.Error().
			Str("sessionCode", t.sessionCode).
			Msg(fmt.Sprintf("Invalid player message: %v", err))
		return
	}
	if message.PlayerID == "" {
		natsLogger.Warn().
			Str("sessionCode", t.sessionCode).
			Msg("Dropping player message with no player id")
		return
	}

	switch message.MessageType {
	case game.PlayerActed:
		if message.Action == nil {
			natsLogger.Warn().
				Str("sessionCode", t.sessionCode).
				Str("playerId", message.PlayerID).
				Msg("ACTION message carried no action")
			return
		}
		t.manager.SubmitAction(message.PlayerID, message.SessionCode, *message.Action)
	case game.PlayerResync:
		if !t.allowResync(message.PlayerID) {
			natsLogger.Warn().
				Str("playerId", message.PlayerID).
				Msg("Resync throttled")
			return
		}
		t.manager.RequestResync(message.PlayerID)
	case game.PlayerBoot:
		t.manager.BootPlayer(message.PlayerID, message.SessionCode, message.SeatNo)
	case game.PlayerOffline:
		t.manager.HandleDisconnect(message.PlayerID)
	case game.PlayerLeave:
		t.manager.HandleLeave(message.PlayerID)
	case game.PlayerRejoin:
		t.manager.HandleReconnect(message.PlayerID)
	default:
		natsLogger.Warn().
			Str("playerId", message.PlayerID).
			Str("messageType", message.MessageType).
			Msg("Unknown player message type")
	}
}

func (t *NatsTable) allowResync(playerID string) bool {
	t.resyncMutex.Lock()
	defer t.resyncMutex.Unlock()
	limiter, ok := t.resyncLimiters[playerID]
	if !ok {
		if len(t.resyncLimiters) >= resyncLimiterSize {
			t.resyncLimiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(resyncPerSecond), resyncBurst)
		t.resyncLimiters[playerID] = limiter
	}
	return limiter.Allow()
}

// BroadcastSessionMessage implements game.MessageReceiver.
func (t *NatsTable) BroadcastSessionMessage(message *game.SessionMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		natsLogger.Error().
			Str("sessionCode", t.sessionCode).
			Msg(fmt.Sprintf("Failed to marshal broadcast: %v", err))
		return
	}
	if err := t.natsConn.Publish(t.table2AllPlayersSubject, data); err != nil {
		natsLogger.Error().
			Str("sessionCode", t.sessionCode).
			Msg(fmt.Sprintf("Failed to publish to %s: %v", t.table2AllPlayersSubject, err))
	}
}

// SendMessageToPlayer implements game.MessageReceiver.
func (t *NatsTable) SendMessageToPlayer(playerID string, message *game.SessionMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		natsLogger.Error().
			Str("playerId", playerID).
			Msg(fmt.Sprintf("Failed to marshal player message: %v", err))
		return
	}
	subject := GetTable2PlayerSubject(playerID)
	if err := t.natsConn.Publish(subject, data); err != nil {
		natsLogger.Error().
			Str("playerId", playerID).
			Msg(fmt.Sprintf("Failed to publish to %s: %v", subject, err))
	}
}
