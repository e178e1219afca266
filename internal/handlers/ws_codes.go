// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	InvalidRoomCodeError = 3003 // Room code in the WS URL does not exist.
	RoomUnavailableError = 3004 // The room's coordinator is shutting down.
)
