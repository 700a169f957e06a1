package request

import (
	"strings"
	"time"
)

type CreateBookingRequest struct {
	ServiceID       int64     `json:"service_id"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	StaffID         int64     `json:"staff_id,omitempty"`
	StartUTC        time.Time `json:"start_utc" binding:"required"`
	GroupSize       int       `json:"group_size,omitempty"`
	CustomerName    string    `json:"customer_name" binding:"required"`
	CustomerEmail   string    `json:"customer_email" binding:"required,email"`
}

func (r CreateBookingRequest) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

func (r CreateBookingRequest) TrimmedName() string {
	return strings.TrimSpace(r.CustomerName)
}

type RescheduleBookingRequest struct {
	NewStartUTC time.Time `json:"new_start_utc" binding:"required"`
}
