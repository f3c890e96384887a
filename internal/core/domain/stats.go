package domain

import "time"

// DailyStats is a snapshot of how many issues were in a status on a given day.
type DailyStats struct {
	ID     int64       `json:"id" bson:"_id"`
	Date   time.Time   `json:"date" bson:"date"`
	Status IssueStatus `json:"status" bson:"status"`
	Count  int64       `json:"count" bson:"count"`
}
