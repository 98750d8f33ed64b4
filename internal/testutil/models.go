// Package testutil holds GORM fixture models and a seeded sqlite database
// shared by package tests.
package testutil

import "time"

type Category struct {
	ID    uint `gorm:"primaryKey"`
	Label string
}

type Book struct {
	ID            uint   `gorm:"primaryKey"`
	Label         string `gorm:"not null"`
	Comment       string
	Difficulty    string `forest:"enums:easy|hard"`
	Amount        float64
	Options       string `gorm:"type:json"`
	CategoryID    uint
	Category      Category
	PublishedAt   time.Time `gorm:"type:date"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Advertisement *Advertisement
	Comments      []Comment
	Ranges        []Range `gorm:"many2many:book_range;"`
}

type Advertisement struct {
	ID     uint `gorm:"primaryKey"`
	Label  string
	BookID uint
}

type Comment struct {
	ID     uint `gorm:"primaryKey"`
	Body   string
	UserID uint
	BookID uint
}

type Range struct {
	ID    uint `gorm:"primaryKey"`
	Label string
	Books []Book `gorm:"many2many:book_range;"`
}

// Models returns one pointer per fixture model, in registration order.
func Models() []any {
	return []any{&Book{}, &Category{}, &Advertisement{}, &Comment{}, &Range{}}
}
