package models

import (
	"sort"
	"time"
)

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Category) TableName() string {
	return "categories"
}

// Question belongs either to a custom room or to a category, never both.
type Question struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	RoomID             *uint          `gorm:"index:idx_question_room_order" json:"roomId,omitempty"`
	CategoryID         *uint          `gorm:"index:idx_question_category_order" json:"categoryId,omitempty"`
	QuestionText       string         `gorm:"type:text;not null" json:"questionText"`
	QuestionOrder      int            `gorm:"not null;index:idx_question_room_order;index:idx_question_category_order" json:"questionOrder"`
	CorrectAnswerIndex int            `gorm:"not null" json:"correctAnswerIndex"`
	TimerSeconds       *int           `json:"timerSeconds,omitempty"`
	Options            []AnswerOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

func (Question) TableName() string {
	return "questions"
}

type AnswerOption struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	QuestionID  uint   `gorm:"not null;index" json:"-"`
	AnswerIndex int    `gorm:"not null" json:"index"`
	AnswerText  string `gorm:"type:text;not null" json:"text"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}

// TimerFor returns the question's own timer override, falling back to the room default.
func (q *Question) TimerFor(room *Room) int {
	if q.TimerSeconds != nil && *q.TimerSeconds > 0 {
		return *q.TimerSeconds
	}
	return room.QuestionTimerSeconds
}

// SortedOptions returns the options ordered by their stable index.
func (q *Question) SortedOptions() []AnswerOption {
	opts := make([]AnswerOption, len(q.Options))
	copy(opts, q.Options)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].AnswerIndex < opts[j].AnswerIndex })
	return opts
}

func (q *Question) HasOption(index int) bool {
	for _, o := range q.Options {
		if o.AnswerIndex == index {
			return true
		}
	}
	return false
}

// CorrectAnswerText resolves the display text of the correct option.
func (q *Question) CorrectAnswerText() string {
	for _, o := range q.Options {
		if o.AnswerIndex == q.CorrectAnswerIndex {
			return o.AnswerText
		}
	}
	return ""
}
