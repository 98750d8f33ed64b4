package main

import "time"

// Demo shop models exposed by the agent.

type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"not null"`
	Country   string
	Orders    []Order
	CreatedAt time.Time
}

type Product struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Price    float64
	Category string `forest:"enums:books|games|music"`
	Tags     []Tag  `gorm:"many2many:product_tags;"`
	Reviews  []Review
}

type Order struct {
	ID         uint `gorm:"primaryKey"`
	CustomerID uint
	Customer   Customer
	Status     string `forest:"enums:pending|paid|shipped|refunded"`
	Total      float64
	Paid       bool
	ShippedOn  time.Time `gorm:"type:date"`
	CreatedAt  time.Time
	Items      []OrderItem
}

type OrderItem struct {
	ID        uint `gorm:"primaryKey"`
	OrderID   uint
	ProductID uint
	Product   Product
	Quantity  int
}

type Review struct {
	ID        uint `gorm:"primaryKey"`
	ProductID uint
	Rating    int
	Body      string
}

type Tag struct {
	ID    uint `gorm:"primaryKey"`
	Label string
}

func demoModels() []any {
	return []any{&Customer{}, &Product{}, &Order{}, &OrderItem{}, &Review{}, &Tag{}}
}
