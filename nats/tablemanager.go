package nats

import (
	"sync"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"cardroom.io/server/game"
	"cardroom.io/server/util"
)

var tmLogger = log.With().Str("logger_name", "nats::tablemanager").Logger()

// TableManager pairs every live session with a NatsTable adapter and tears
// the adapter down when the session ends. It is also the manager-level
// receiver for answering identities whose session is already gone.
type TableManager struct {
	nc      *natsgo.Conn
	manager *game.Manager

	tableMutex   sync.Mutex
	activeTables map[string]*NatsTable

	resultSink game.ResultSink
}

func NewTableManager(timing game.TimingConfig, resultSink game.ResultSink) (*TableManager, error) {
	natsURL := util.Env.GetNatsURL()
	nc, err := natsgo.Connect(natsURL)
	if err != nil {
		tmLogger.Error().Msgf("Failed to connect to nats server at %s: %v", natsURL, err)
		return nil, err
	}

	tm := &TableManager{
		nc:           nc,
		activeTables: make(map[string]*NatsTable),
		resultSink:   resultSink,
	}
	manager, err := game.NewManager(timing, tm, tm)
	if err != nil {
		nc.Close()
		return nil, err
	}
	tm.manager = manager
	return tm, nil
}

func (tm *TableManager) Manager() *game.Manager {
	return tm.manager
}

// NewTable subscribes a NatsTable adapter, registers the session, and deals
// the first round.
func (tm *TableManager) NewTable(
	config *game.SessionConfig,
	rules game.RulesEngine,
	strategy game.Strategy) (*game.Session, error) {

	table, err := newNatsTable(tm.nc, tm.manager, config.SessionCode)
	if err != nil {
		return nil, err
	}
	session, err := tm.manager.CreateSession(config, rules, strategy, table)
	if err != nil {
		table.cleanup()
		return nil, err
	}

	tm.tableMutex.Lock()
	tm.activeTables[config.SessionCode] = table
	tm.tableMutex.Unlock()

	tmLogger.Info().
		Str("sessionCode", config.SessionCode).
		Str("variant", config.Variant).
		Msg("Table subscribed")

	session.Start()
	return session, nil
}

func (tm *TableManager) ActiveTableCount() int {
	tm.tableMutex.Lock()
	defer tm.tableMutex.Unlock()
	return len(tm.activeTables)
}

func (tm *TableManager) Close() {
	tm.tableMutex.Lock()
	for code, table := range tm.activeTables {
		table.cleanup()
		delete(tm.activeTables, code)
	}
	tm.tableMutex.Unlock()
	tm.nc.Close()
}

// RecordResult implements game.ResultSink. The session manager reports the
// terminal result here; the table's subscription is released and the result
// forwarded to the real sink.
func (tm *TableManager) RecordResult(config *game.SessionConfig, terminal *game.TerminalMessage) {
	tm.tableMutex.Lock()
	if table, exists := tm.activeTables[config.SessionCode]; exists {
		table.cleanup()
		delete(tm.activeTables, config.SessionCode)
	}
	tm.tableMutex.Unlock()

	if tm.resultSink != nil {
		tm.resultSink.RecordResult(config, terminal)
	}
}

// BroadcastSessionMessage implements game.MessageReceiver at the manager
// level. The subject is derived from the message itself because the session
// may no longer have a live table.
func (tm *TableManager) BroadcastSessionMessage(message *game.SessionMessage) {
	if message.SessionCode == "" {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		tmLogger.Error().Msgf("Failed to marshal broadcast: %v", err)
		return
	}
	if err := tm.nc.Publish(GetTable2AllPlayersSubject(message.SessionCode), data); err != nil {
		tmLogger.Error().
			Str("sessionCode", message.SessionCode).
			Msgf("Failed to publish broadcast: %v", err)
	}
}

// SendMessageToPlayer implements game.MessageReceiver. This is the path that
// carries session-lost answers to stale clients.
func (tm *TableManager) SendMessageToPlayer(playerID string, message *game.SessionMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		tmLogger.Error().Str("playerId", playerID).Msgf("Failed to marshal message: %v", err)
		return
	}
	if err := tm.nc.Publish(GetTable2PlayerSubject(playerID), data); err != nil {
		tmLogger.Error().Str("playerId", playerID).Msgf("Failed to publish message: %v", err)
	}
}
