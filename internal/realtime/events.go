package realtime

import (
	"encoding/json"
	"errors"

	"online_tables_lite/internal/api"
)

// Server events.
const (
	EventJoinTable  = "join_table"
	EventLeaveTable = "leave_table"
	EventRoomJoined = "room_joined"
	EventCellUpdate = "cell_update"
)

// Connection changes reported by a Transport alongside server events.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
	EventReconnecting = "reconnect_attempt"
)

var (
	ErrServerClosed    = errors.New("server closed the connection")
	ErrReconnectFailed = errors.New("gave up reconnecting")
	ErrClosed          = errors.New("transport closed")
)

// Event is a server event with its JSON argument, or a connection change
// carrying the error that caused it.
type Event struct {
	Name string
	Data json.RawMessage
	Err  error
}

type TablePayload struct {
	TableID string `json:"table_id"`
}

// CellUpdate is broadcast to a table's room after a successful batch write.
type CellUpdate struct {
	TableID string     `json:"table_id"`
	Cells   []api.Cell `json:"cells"`
}
