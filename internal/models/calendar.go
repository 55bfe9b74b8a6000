package models

import "github.com/starford/plantbutler/internal/daykey"

// Memo is a non-blank diary note of a day.
type Memo struct {
	Day  daykey.DayKey `json:"day"`
	Date string        `json:"date"`
	Text string        `json:"text"`
}

// DayCell is a month grid cell annotated with the day's records.
type DayCell struct {
	daykey.Cell
	Date       string `json:"date,omitempty"`
	HasDiary   bool   `json:"has_diary,omitempty"`
	PhotoCount int    `json:"photo_count,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// MonthView is the calendar screen for one month.
type MonthView struct {
	Year  int       `json:"year"`
	Month int       `json:"month"`
	Cells []DayCell `json:"cells"`
}
