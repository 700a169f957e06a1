package response

import (
	"time"

	"schedcore/internal/domain/schedule"
)

type SlotResponse struct {
	StartUTC       string `json:"start_utc"`
	EndUTC         string `json:"end_utc"`
	StaffID        int64  `json:"staff_id,omitempty"`
	AvailableGroup int    `json:"available_group"`
}

func FromSlots(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, len(slots))
	for i, s := range slots {
		out[i] = SlotResponse{
			StartUTC:       s.Start.UTC().Format(time.RFC3339),
			EndUTC:         s.End.UTC().Format(time.RFC3339),
			StaffID:        s.StaffID,
			AvailableGroup: s.AvailableGroup,
		}
	}
	return out
}
