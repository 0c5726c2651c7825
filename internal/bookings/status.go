package bookings

// Status of a booking. Bookings are only ever created confirmed; there is no
// cancel operation.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
)
