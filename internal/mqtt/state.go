package mqtt

// State describes the manager's position in the connection lifecycle.
//
// Transitions:
//
//	Disconnected → Connecting → Connected
//	Connected → Reconnecting → Connected (link recovered)
//	Reconnecting → Disconnected (attempts exhausted)
//	any → ShuttingDown → Disconnected
//
// ShuttingDown suppresses reconnection: a connection loss observed
// during shutdown is expected and never restarts the supervisor.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateShuttingDown
)

// String returns the lowercase state name for logs and telemetry.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}
