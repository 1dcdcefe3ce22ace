// Package preview streams annotated frames and detection updates to
// browsers over websockets using a channel-based fan-out hub.
package preview

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded event.
	JSONMessage MessageType = iota
	// BinaryMessage is a JPEG frame.
	BinaryMessage
)

// Message is a payload for every client subscribed to Topic.
// An empty Topic reaches all clients.
type Message struct {
	Type  MessageType
	Topic string
	Data  []byte
}
