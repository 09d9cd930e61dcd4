package game

import "fmt"

// SessionLostError is returned when an operation references a session that no
// longer exists. Clients receiving it must re-derive membership by identity
// instead of retrying with the stale session code.
type SessionLostError struct {
	SessionCode string
}

func (e SessionLostError) Error() string {
	return fmt.Sprintf("session %s no longer exists", e.SessionCode)
}

type NotYourTurnError struct {
	SeatNo   int
	PlayerID string
}

func (e NotYourTurnError) Error() string {
	return fmt.Sprintf("player %s does not own the acting seat %d", e.PlayerID, e.SeatNo)
}

type WrongPhaseError struct {
	Phase Phase
}

func (e WrongPhaseError) Error() string {
	return fmt.Sprintf("action not allowed in phase %s", e.Phase)
}

type SeatNotAIError struct {
	SeatNo int
}

func (e SeatNotAIError) Error() string {
	return fmt.Sprintf("seat %d is not AI controlled", e.SeatNo)
}

type SeatNotTimedOutError struct {
	SeatNo int
}

func (e SeatNotTimedOutError) Error() string {
	return fmt.Sprintf("seat %d has not timed out", e.SeatNo)
}
