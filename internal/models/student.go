package models

import "time"

// Student is a learner whose answer sheets get uploaded and evaluated.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	RollNo    string    `gorm:"size:32;uniqueIndex;not null" json:"roll_no"`
	Name      string    `gorm:"size:128" json:"name"`
	Email     string    `gorm:"size:128" json:"email"`
	Semester  int       `json:"semester"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Course is a taught unit students enrol into.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Code      string    `gorm:"size:32" json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
