// Package protocol implements the newline-delimited JSON protocol spoken
// between clients and the study hall server.
package protocol

// Type is the message discriminator carried in the "type" field.
type Type string

// Client to server.
const (
	TypeJoin              Type = "JOIN"
	TypeJoinRoom          Type = "JOIN_ROOM"
	TypeChat              Type = "CHAT"
	TypeAdminChat         Type = "ADMIN_CHAT"
	TypeCheckin           Type = "CHECKIN"
	TypeAwayStart         Type = "AWAY_START"
	TypeAwayBack          Type = "AWAY_BACK"
	TypeCheckout          Type = "CHECKOUT"
	TypeSensorData        Type = "SENSOR_DATA"
	TypeSeatStatusRequest Type = "SEAT_STATUS_REQUEST"
)

// Server to client.
const (
	TypeSystem          Type = "SYSTEM"
	TypeSeatUpdate      Type = "SEAT_UPDATE"
	TypeDashboardUpdate Type = "DASHBOARD_UPDATE"
	TypeError           Type = "ERROR"
)

// SystemSender is the sender and role stamped on server-originated frames.
const SystemSender = "SYSTEM"
