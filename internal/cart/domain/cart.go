package domain

import (
	"errors"
	"math"
	"time"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrQuantityTooLarge = errors.New("quantity too large")
)

type CartItem struct {
	ProductID string
	Quantity  int32
}

// Cart is the per-user staging list of products. Item order is the order in
// which products were first added.
type Cart struct {
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Add increments the quantity of an existing line or appends a new one.
func (c *Cart) Add(item CartItem) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			if c.Items[i].Quantity > math.MaxInt32-item.Quantity {
				return ErrQuantityTooLarge
			}
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity overwrites a line's quantity; zero removes the line.
func (c *Cart) SetQuantity(item CartItem) error {
	if item.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if item.Quantity == 0 {
		c.Remove(item.ProductID)
		return nil
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity = item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (c *Cart) Remove(productID string) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	c.Items = out
}

// SameItems reports whether two item lists are identical, order included.
func SameItems(a, b []CartItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
