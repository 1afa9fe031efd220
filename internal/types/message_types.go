package types

import "encoding/json"

// Socket events.
const (
	EventReceiveMessage = "receiveMessage"
	EventSendMessage    = "sendMessage"
	EventOnlineUsers    = "onlineUsers"
	EventUsersOnline    = "usersOnline"
)

// EventNewMessage is the event name carried on the pub/sub channel.
const EventNewMessage = "new-message"

// Envelope frames every socket and pub/sub payload.
type Envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Origin string          `json:"origin,omitempty"`
}

func NewEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// SendMessagePayload is the inbound body of a sendMessage event or an HTTP
// send-message request. Older clients put the text under "text".
type SendMessagePayload struct {
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
	Sender  string `json:"sender"`
}

func (p SendMessagePayload) Body() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Text
}
