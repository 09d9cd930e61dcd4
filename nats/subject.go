package nats

import (
	"fmt"
)

func GetPlayer2TableSubject(sessionCode string) string {
	return fmt.Sprintf("table.%s.player2table", sessionCode)
}

func GetTable2AllPlayersSubject(sessionCode string) string {
	return fmt.Sprintf("table.%s.table2all", sessionCode)
}

// GetTable2PlayerSubject is identity-scoped rather than session-scoped so
// session-lost answers reach clients whose session pointer is stale.
func GetTable2PlayerSubject(playerID string) string {
	return fmt.Sprintf("table2player.%s", playerID)
}
