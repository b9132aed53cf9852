package protocol

import (
	"encoding/json"

	"studyhall-backend/internal/scope"
)

// SeatInfo is one entry of a SEAT_UPDATE.
type SeatInfo struct {
	SeatNo        int     `json:"seatNo"`
	State         string  `json:"state"`
	UserID        *string `json:"userId"`
	RemainSeconds int     `json:"remainSeconds"`
}

// Frame is the wire shape of every server-originated message.
type Frame struct {
	Type   Type       `json:"type"`
	Floor  *int       `json:"floor,omitempty"`
	Room   *string    `json:"room,omitempty"`
	Role   string     `json:"role,omitempty"`
	Sender string     `json:"sender,omitempty"`
	Msg    string     `json:"msg,omitempty"`
	Temp   *float64   `json:"temp,omitempty"`
	CO2    *float64   `json:"co2,omitempty"`
	Lux    *float64   `json:"lux,omitempty"`
	Seats  []SeatInfo `json:"seats,omitempty"`
}

// Scope returns the frame's audience scope; ok is false when the frame has no
// floor.
func (f *Frame) Scope() (sc scope.Scope, ok bool) {
	if f.Floor == nil {
		return scope.Scope{}, false
	}
	zone, err := scope.ParseZonePtr(f.Room)
	if err != nil {
		zone = scope.ZoneNone
	}
	return scope.New(*f.Floor, zone), true
}

// In addresses the frame to sc.
func (f *Frame) In(sc scope.Scope) *Frame {
	floor := sc.Floor
	f.Floor = &floor
	f.Room = sc.Zone.Ptr()
	return f
}

// Encode renders the frame as a single JSON line without the newline.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

func systemFrame(t Type) *Frame {
	return &Frame{Type: t, Role: SystemSender, Sender: SystemSender}
}

// System builds a scope-wide notice.
func System(sc scope.Scope, text string) *Frame {
	f := systemFrame(TypeSystem).In(sc)
	f.Msg = text
	return f
}

// Error builds an ERROR frame. It carries no scope until In is called.
func Error(text string) *Frame {
	f := systemFrame(TypeError)
	f.Msg = text
	return f
}

// SeatUpdate builds a SEAT_UPDATE for sc.
func SeatUpdate(sc scope.Scope, seats []SeatInfo) *Frame {
	f := systemFrame(TypeSeatUpdate).In(sc)
	f.Seats = seats
	return f
}

// DashboardUpdate builds a DASHBOARD_UPDATE for sc.
func DashboardUpdate(sc scope.Scope, temp, co2, lux float64) *Frame {
	f := systemFrame(TypeDashboardUpdate).In(sc)
	f.Temp, f.CO2, f.Lux = &temp, &co2, &lux
	return f
}

// ChatFrame builds an outbound CHAT or ADMIN_CHAT.
func ChatFrame(kind Type, sc scope.Scope, role, sender, text string) *Frame {
	f := (&Frame{Type: kind, Role: role, Sender: sender, Msg: text}).In(sc)
	return f
}
