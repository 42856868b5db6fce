package model

import "time"

// RepeatKind is the calendar unit a todo repeats by.
type RepeatKind string

const (
	RepeatNone    RepeatKind = "none"
	RepeatMinute  RepeatKind = "minute"
	RepeatHourly  RepeatKind = "hourly"
	RepeatDaily   RepeatKind = "daily"
	RepeatWeekly  RepeatKind = "weekly"
	RepeatMonthly RepeatKind = "monthly"
	RepeatYearly  RepeatKind = "yearly"
)

// Valid reports whether k is a known kind. The empty kind counts as none.
func (k RepeatKind) Valid() bool {
	switch k {
	case "", RepeatNone, RepeatMinute, RepeatHourly, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

// Repeat describes how a todo recurs. Weekdays use 0 = Sunday ... 6 = Saturday
// and only matter for weekly repetition.
type Repeat struct {
	Kind     RepeatKind `json:"type" bson:"type" gorm:"size:16;default:none"`
	Interval int        `json:"interval" bson:"interval" gorm:"default:1"`
	Weekdays []int      `json:"weekdays" bson:"weekdays" gorm:"serializer:json"`
	EndDate  *time.Time `json:"endDate,omitempty" bson:"endDate,omitempty"`
}

// Repeats reports whether the config produces occurrences at all.
func (r Repeat) Repeats() bool {
	return r.Kind != "" && r.Kind != RepeatNone
}

// ChecklistItem is a single sub-step of a todo.
type ChecklistItem struct {
	Item      string `json:"item" bson:"item"`
	Completed bool   `json:"completed" bson:"completed"`
}

// Todo is a single item in a user's list.
type Todo struct {
	ID               string          `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	UserID           string          `json:"user" bson:"user" gorm:"index;size:36;not null"`
	Title            string          `json:"title" bson:"title" gorm:"size:50;not null"`
	Content          string          `json:"content,omitempty" bson:"content,omitempty" gorm:"size:500"`
	Completed        bool            `json:"completed" bson:"completed" gorm:"default:false"`
	DueDate          *time.Time      `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Repeat           Repeat          `json:"repeat" bson:"repeat" gorm:"embedded;embeddedPrefix:repeat_"`
	ReferenceURL     string          `json:"referenceUrl,omitempty" bson:"referenceUrl,omitempty"`
	CheckList        []ChecklistItem `json:"checkList" bson:"checkList" gorm:"serializer:json"`
	NextOccurrenceID string          `json:"nextOccurrenceId,omitempty" bson:"nextOccurrenceId,omitempty" gorm:"size:36"`
	CreatedAt        time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// ChecklistProgress returns how many checklist items are done out of the total.
func (t Todo) ChecklistProgress() (done, total int) {
	for _, item := range t.CheckList {
		if item.Completed {
			done++
		}
	}
	return done, len(t.CheckList)
}
