package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"studyhall-backend/internal/scope"
)

// Message is one decoded client message. The concrete type is one of *Join,
// *Chat, *SeatCommand, *SensorData or *SeatStatusRequest.
type Message interface {
	Kind() Type
	header() *Header
	validate() error
}

// Header carries the envelope fields shared by every variant. All of them are
// optional on the wire and are backfilled from the session when absent.
type Header struct {
	Type   string  `json:"type"`
	Floor  *int    `json:"floor,omitempty"`
	Room   *string `json:"room,omitempty"`
	Zone   *string `json:"zone,omitempty"`
	Role   *string `json:"role,omitempty"`
	Sender *string `json:"sender,omitempty"`

	kind    Type
	zone    scope.Zone
	hasZone bool
}

// Kind returns the normalised message type.
func (h *Header) Kind() Type { return h.kind }

func (h *Header) header() *Header { return h }

func (h *Header) normalize(kind Type) error {
	h.kind = kind
	raw := h.Room
	if raw == nil {
		raw = h.Zone
	}
	if raw == nil {
		return nil
	}
	z, err := scope.ParseZone(*raw)
	if err != nil {
		return err
	}
	h.zone, h.hasZone = z, true
	return nil
}

// ScopeOr resolves the message scope, falling back to def for absent fields.
func (h *Header) ScopeOr(def scope.Scope) scope.Scope {
	sc := def
	if h.Floor != nil {
		sc.Floor = *h.Floor
	}
	if h.hasZone {
		sc.Zone = h.zone
	}
	return sc
}

// RoleOr returns the role field or def when absent.
func (h *Header) RoleOr(def string) string {
	if h.Role == nil {
		return def
	}
	return strings.ToUpper(*h.Role)
}

// SenderOr returns the sender field or def when absent.
func (h *Header) SenderOr(def string) string {
	if h.Sender == nil {
		return def
	}
	return *h.Sender
}

// Join registers the connection's floor, zone, identity and role.
type Join struct {
	Header
}

func (m *Join) validate() error {
	if m.Sender == nil || strings.TrimSpace(*m.Sender) == "" {
		return errors.New("sender is required")
	}
	return nil
}

// Chat is a CHAT or ADMIN_CHAT message.
type Chat struct {
	Header
	Msg *string `json:"msg"`
}

func (m *Chat) validate() error {
	if m.Msg == nil {
		return errors.New("msg is required")
	}
	return nil
}

// SeatCommand is CHECKIN, AWAY_START, AWAY_BACK or CHECKOUT.
type SeatCommand struct {
	Header
	SeatNo *int    `json:"seatNo"`
	UserID *string `json:"userId,omitempty"`
}

func (m *SeatCommand) validate() error {
	if m.SeatNo == nil {
		return errors.New("seatNo is required")
	}
	if *m.SeatNo <= 0 {
		return fmt.Errorf("seatNo must be positive, got %d", *m.SeatNo)
	}
	return nil
}

// UserOr returns the userId field or def when absent.
func (m *SeatCommand) UserOr(def string) string {
	if m.UserID == nil {
		return def
	}
	return *m.UserID
}

// SensorData is one reading from a scope's environment sensor.
type SensorData struct {
	Header
	Temp *float64 `json:"temp"`
	CO2  *float64 `json:"co2"`
	Lux  *float64 `json:"lux"`
}

func (m *SensorData) validate() error {
	var missing []string
	if m.Temp == nil {
		missing = append(missing, "temp")
	}
	if m.CO2 == nil {
		missing = append(missing, "co2")
	}
	if m.Lux == nil {
		missing = append(missing, "lux")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SeatStatusRequest asks for the seat list of a scope.
type SeatStatusRequest struct {
	Header
}

func (m *SeatStatusRequest) validate() error { return nil }

func newVariant(kind Type) (Message, error) {
	switch kind {
	case TypeJoin, TypeJoinRoom:
		return &Join{}, nil
	case TypeChat, TypeAdminChat:
		return &Chat{}, nil
	case TypeCheckin, TypeAwayStart, TypeAwayBack, TypeCheckout:
		return &SeatCommand{}, nil
	case TypeSensorData:
		return &SensorData{}, nil
	case TypeSeatStatusRequest:
		return &SeatStatusRequest{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
}

// Decode parses one protocol line into its variant. Unknown fields and
// missing mandatory fields are rejected with a *ParseError.
func Decode(line []byte) (Message, error) {
	var peek struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(line, &peek); err != nil {
		return nil, &ParseError{Err: err}
	}
	if peek.Type == nil || strings.TrimSpace(*peek.Type) == "" {
		return nil, ErrMissingType
	}
	kind := Type(strings.ToUpper(strings.TrimSpace(*peek.Type)))

	msg, err := newVariant(kind)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return nil, &ParseError{Type: kind, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Type: kind, Err: errors.New("trailing data after message")}
	}
	if err := msg.header().normalize(kind); err != nil {
		return nil, &ParseError{Type: kind, Err: err}
	}
	if err := msg.validate(); err != nil {
		return nil, &ParseError{Type: kind, Err: err}
	}
	return msg, nil
}
