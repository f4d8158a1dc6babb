// Package inventory has the entities of a small warehouse and helpers
// to keep them in keyedstore.Store and entitylog.Log.
package inventory

import (
	"errors"
	"time"
)

var (
	errNegativeQuantity = errors.New("quantity cannot be negative")
	errNegativeWarranty = errors.New("warranty months cannot be negative")
)

func validateQuantity(qty int) error {
	if qty < 0 {
		return errNegativeQuantity
	}
	return nil
}

// Item is an entry in the inventory log
type Item struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	DateAdded time.Time `json:"date_added"`
}

func (i Item) Key() int        { return i.ID }
func (i Item) Validate() error { return validateQuantity(i.Quantity) }

func (i Item) WithQuantity(qty int) Item {
	i.Quantity = qty
	return i
}

// ElectronicItem is stocked with a brand and a warranty
type ElectronicItem struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	Brand          string `json:"brand"`
	WarrantyMonths int    `json:"warranty_months"`
}

func (i ElectronicItem) Key() int { return i.ID }

func (i ElectronicItem) Validate() error {
	if err := validateQuantity(i.Quantity); err != nil {
		return err
	}
	if i.WarrantyMonths < 0 {
		return errNegativeWarranty
	}
	return nil
}

func (i ElectronicItem) WithQuantity(qty int) ElectronicItem {
	i.Quantity = qty
	return i
}

// GroceryItem expires at the end of ExpiryDate
type GroceryItem struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	ExpiryDate Date   `json:"expiry_date"`
}

func (i GroceryItem) Key() int { return i.ID }

func (i GroceryItem) Validate() error {
	if err := validateQuantity(i.Quantity); err != nil {
		return err
	}
	return i.ExpiryDate.Validate()
}

func (i GroceryItem) WithQuantity(qty int) GroceryItem {
	i.Quantity = qty
	return i
}

// IsExpired returns true if the item expired before today.
// Items without expiry date never expire.
func (i GroceryItem) IsExpired(today Date) bool {
	if i.ExpiryDate.IsZero() {
		return false
	}
	return i.ExpiryDate.Before(today)
}
