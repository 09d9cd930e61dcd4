package game

import (
	lru "github.com/hashicorp/golang-lru"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"cardroom.io/server/util"
)

var managerLogger = log.With().Str("logger_name", "game::manager").Logger()

const completedSessionsCacheSize = 128

// ResultSink receives final results at game over. The Redis leaderboard
// implements it; tests plug in a recorder.
type ResultSink interface {
	RecordResult(config *SessionConfig, terminal *TerminalMessage)
}

// Manager owns every live session on this server: the explicit
// sessionCode -> runtime registry the transport is handed, plus the
// identity -> sessionCode index used to re-derive membership when a client's
// session pointer is stale.
type Manager struct {
	timing   TimingConfig
	queue    *CommandQueue
	registry *DisconnectRegistry

	activeSessions cmap.ConcurrentMap[string, *Session]
	playerIndex    cmap.ConcurrentMap[string, string]

	// Recently completed sessions, so a stale client still gets the terminal
	// result with its session-lost answer.
	completed *lru.Cache

	receiver   MessageReceiver
	resultSink ResultSink
}

// NewManager wires the manager. receiver is the fallback path for answering
// identities that no longer map to a live session; resultSink may be nil.
func NewManager(timing TimingConfig, receiver MessageReceiver, resultSink ResultSink) (*Manager, error) {
	completed, err := lru.New(completedSessionsCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to create completed-sessions cache")
	}

	m := &Manager{
		timing:         timing,
		queue:          NewCommandQueue(),
		activeSessions: cmap.New[*Session](),
		playerIndex:    cmap.New[string](),
		completed:      completed,
		receiver:       receiver,
		resultSink:     resultSink,
	}
	m.registry = NewDisconnectRegistry(timing.ReconnectGrace(), m.onGraceExpired)
	return m, nil
}

func (m *Manager) CreateSession(
	config *SessionConfig,
	rules RulesEngine,
	strategy Strategy,
	receiver MessageReceiver) (*Session, error) {

	if config.SessionCode == "" {
		return nil, errors.New("session code is required")
	}
	if m.activeSessions.Has(config.SessionCode) {
		return nil, errors.Errorf("session %s already exists", config.SessionCode)
	}

	session, err := NewSession(m, config, rules, strategy, receiver)
	if err != nil {
		return nil, err
	}
	m.activeSessions.Set(config.SessionCode, session)
	for _, sc := range config.Seats {
		if sc.IsHuman && sc.PlayerID != "" {
			m.playerIndex.Set(sc.PlayerID, config.SessionCode)
		}
	}

	util.Metrics.SessionCreated()
	util.Metrics.SetActiveSessionsMapCount(m.activeSessions.Count())
	managerLogger.Info().
		Str("sessionCode", config.SessionCode).
		Str("variant", config.Variant).
		Msg("Session created")
	return session, nil
}

func (m *Manager) GetSession(sessionCode string) (*Session, bool) {
	return m.activeSessions.Get(sessionCode)
}

// SessionForPlayer re-derives session membership from identity. This is the
// lookup clients fall back to after a session-lost answer.
func (m *Manager) SessionForPlayer(playerID string) (*Session, bool) {
	code, ok := m.playerIndex.Get(playerID)
	if !ok {
		return nil, false
	}
	return m.activeSessions.Get(code)
}

func (m *Manager) ActiveSessionCodes() []string {
	return m.activeSessions.Keys()
}

func (m *Manager) ActiveSessionCount() int {
	return m.activeSessions.Count()
}

func (m *Manager) DisconnectRegistry() *DisconnectRegistry {
	return m.registry
}

// SubmitAction routes an action by session code. A code that no longer
// resolves yields a session-lost answer instead of a silent drop.
func (m *Manager) SubmitAction(playerID string, sessionCode string, action Action) bool {
	session, ok := m.activeSessions.Get(sessionCode)
	if !ok {
		m.sendSessionLost(playerID, sessionCode)
		return false
	}
	return session.SubmitAction(playerID, action)
}

// RequestResync is always accepted and never mutates. It deliberately ignores
// any client-supplied session code: membership is re-derived from identity,
// because the client's current-session pointer can be legitimately stale.
func (m *Manager) RequestResync(playerID string) {
	session, ok := m.SessionForPlayer(playerID)
	if !ok {
		code, _ := m.playerIndex.Get(playerID)
		m.sendSessionLost(playerID, code)
		return
	}
	session.RequestResync(playerID)
}

func (m *Manager) BootPlayer(playerID string, sessionCode string, seatNo int) bool {
	session, ok := m.activeSessions.Get(sessionCode)
	if !ok {
		m.sendSessionLost(playerID, sessionCode)
		return false
	}
	return session.BootPlayer(playerID, seatNo)
}

// HandleDisconnect is driven by the transport's connection-loss signal.
func (m *Manager) HandleDisconnect(playerID string) {
	session, ok := m.SessionForPlayer(playerID)
	if !ok {
		return
	}
	session.PlayerDisconnected(playerID)
}

// HandleLeave hands the identity's seat to AI for the rest of the game.
func (m *Manager) HandleLeave(playerID string) {
	session, ok := m.SessionForPlayer(playerID)
	if !ok {
		return
	}
	session.Leave(playerID)
}

// HandleReconnect restores the identity's seat if a live session still has
// it.
func (m *Manager) HandleReconnect(playerID string) bool {
	session, ok := m.SessionForPlayer(playerID)
	if !ok {
		code, _ := m.playerIndex.Get(playerID)
		m.sendSessionLost(playerID, code)
		return false
	}
	return session.PlayerReconnected(playerID)
}

func (m *Manager) onGraceExpired(rec DisconnectRecord) {
	session, ok := m.activeSessions.Get(rec.SessionCode)
	if !ok {
		return
	}
	m.queue.Enqueue(rec.SessionCode, func() {
		session.replaceWithAI(rec.SeatNo, SeatUpdateReplacedAI)
	})
}

func (m *Manager) sessionEnded(session *Session, terminal *TerminalMessage) {
	m.activeSessions.Remove(session.code)
	m.completed.Add(session.code, terminal)
	util.Metrics.SetActiveSessionsMapCount(m.activeSessions.Count())

	if m.resultSink != nil {
		m.resultSink.RecordResult(session.config, terminal)
	}
	managerLogger.Info().
		Str("sessionCode", session.code).
		Msg("Session ended and archived")
}

// sendSessionLost answers a stale reference with the distinct session-lost
// signal, attaching the terminal result when the session finished recently.
func (m *Manager) sendSessionLost(playerID string, sessionCode string) {
	if m.receiver == nil {
		return
	}
	managerLogger.Debug().
		Str("playerID", playerID).
		Msgf("Answering stale reference: %v", SessionLostError{SessionCode: sessionCode})
	msg := &SessionMessage{
		SessionCode: sessionCode,
		MessageType: SessionLost,
	}
	if cached, ok := m.completed.Get(sessionCode); ok {
		if terminal, ok := cached.(*TerminalMessage); ok {
			msg.Terminal = terminal
		}
	}
	m.receiver.SendMessageToPlayer(playerID, msg)
}
