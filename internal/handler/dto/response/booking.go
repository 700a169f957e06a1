package response

import (
	"time"

	"schedcore/internal/usecase/queries"

	"github.com/google/uuid"
)

type BookingResponse struct {
	ID            uuid.UUID `json:"id"`
	ServiceID     int64     `json:"service_id"`
	StaffID       int64     `json:"staff_id"`
	Status        string    `json:"status"`
	StartUTC      time.Time `json:"start_utc"`
	EndUTC        time.Time `json:"end_utc"`
	GroupSize     int       `json:"group_size"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreatedBookingResponse additionally carries the manage token the customer
// needs for cancel/reschedule. Returned once, on create only.
type CreatedBookingResponse struct {
	BookingResponse
	ManageToken string `json:"manage_token"`
}

func FromBookingView(v *queries.BookingView) *BookingResponse {
	return &BookingResponse{
		ID:            v.ID,
		ServiceID:     v.ServiceID,
		StaffID:       v.StaffID,
		Status:        v.Status,
		StartUTC:      v.StartUTC,
		EndUTC:        v.EndUTC,
		GroupSize:     v.GroupSize,
		CustomerName:  v.CustomerName,
		CustomerEmail: v.CustomerEmail,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func FromCreatedBooking(v *queries.BookingView, manageToken string) *CreatedBookingResponse {
	return &CreatedBookingResponse{
		BookingResponse: *FromBookingView(v),
		ManageToken:     manageToken,
	}
}
