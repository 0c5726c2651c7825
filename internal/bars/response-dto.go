package bars

import "barbuddy/internal/schedule"

type DayHoursResponse struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open"`
	Close   string `json:"close"`
}

type ScheduleResponse struct {
	BarID               string             `json:"bar_id"`
	Name                string             `json:"name"`
	Timezone            string             `json:"timezone"`
	SlotIntervalMinutes int                `json:"slot_interval_minutes"`
	Days                []DayHoursResponse `json:"days"`
}

type SlotsResponse struct {
	BarID  string              `json:"bar_id"`
	Date   string              `json:"date"`
	Closed bool                `json:"closed"`
	Slots  []schedule.TimeSlot `json:"slots"`
}

type TableTypeResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MinimumSpend float64 `json:"minimum_spend"`
}
