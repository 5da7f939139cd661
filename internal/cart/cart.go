package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the session-scoped mapping from product id to line.
type Cart struct {
	Lines map[string]Line `json:"lines"`
}

// Line holds the quantity and the price captured when the product was first added.
type Line struct {
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func newCart() *Cart {
	return &Cart{Lines: make(map[string]Line)}
}

func (c *Cart) ensure() {
	if c.Lines == nil {
		c.Lines = make(map[string]Line)
	}
}

// add increments an existing line and keeps its price, or inserts a new one at price.
func (c *Cart) add(productID uuid.UUID, qty int, price decimal.Decimal) {
	c.ensure()
	key := productID.String()
	if line, ok := c.Lines[key]; ok {
		line.Quantity += qty
		c.Lines[key] = line
		return
	}
	c.Lines[key] = Line{Quantity: qty, Price: price.StringFixed(2)}
}

func (c *Cart) remove(productID uuid.UUID) bool {
	key := productID.String()
	if _, ok := c.Lines[key]; !ok {
		return false
	}
	delete(c.Lines, key)
	return true
}

func (c *Cart) setQuantity(productID uuid.UUID, qty int) bool {
	key := productID.String()
	line, ok := c.Lines[key]
	if !ok {
		return false
	}
	line.Quantity = qty
	c.Lines[key] = line
	return true
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}
