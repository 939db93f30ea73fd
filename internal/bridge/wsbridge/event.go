package wsbridge

import "github.com/dep2p/go-p2pchat/pkg/types"

// 事件名
const (
	EventMessage  = "message"
	EventPresence = "presence"
	EventStatus   = "status"
	EventError    = "error"
)

// 客户端帧类型
const (
	FrameMessage = "message"
)

// Event 推送给浏览器的事件
type Event struct {
	Event     string `json:"event"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp uint64 `json:"timestamp,omitempty"`
	LastSeen  uint64 `json:"last_seen,omitempty"`
	State     string `json:"state,omitempty"`
	Error     string `json:"error,omitempty"`

	// Local 本地回显的自己发出的消息
	Local bool `json:"local,omitempty"`
}

// Frame 浏览器发来的帧
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func messageEvent(m types.ChatMessage, local bool) Event {
	return Event{
		Event:     EventMessage,
		Username:  m.Username,
		Text:      m.Text,
		Timestamp: m.TimestampMillis,
		Local:     local,
	}
}

func presenceEvent(p types.PresenceUpdate) Event {
	return Event{
		Event:    EventPresence,
		Username: p.Username,
		LastSeen: p.LastSeenMillis,
	}
}

func statusEvent(state types.ConnectionState, err error) Event {
	e := Event{Event: EventStatus, State: state.String()}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func errorEvent(err error) Event {
	return Event{Event: EventError, Error: err.Error()}
}
