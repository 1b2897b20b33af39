// Package cart holds the line items of one pending walk-in sale.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LightDreamhs/MyPetShop3.0/internal/domain"
	"github.com/LightDreamhs/MyPetShop3.0/internal/money"
)

var (
	ErrDuplicateItem = errors.New("product is already in the cart")
	ErrItemNotFound  = errors.New("cart line not found")
	ErrUnknownField  = errors.New("unknown cart line field")
	ErrLineTooLarge  = errors.New("cart line amount is too large")
)

// Field names an editable column of a cart line.
type Field string

const (
	FieldQuantity  Field = "quantity"
	FieldUnitPrice Field = "unitPrice"
)

// Line is one product in the cart. The subtotal is never stored; it is
// derived from quantity and unit price on every read.
type Line struct {
	ProductID      int64
	ProductName    string
	Quantity       int64
	UnitPriceCents int64
}

func (l Line) Subtotal() int64 {
	return l.Quantity * l.UnitPriceCents
}

// InRange reports whether the line subtotal stays within money.MaxCents.
func (l Line) InRange() bool {
	return subtotalFits(l.Quantity, l.UnitPriceCents)
}

func subtotalFits(quantity int64, unitPrice int64) bool {
	if quantity < 0 || unitPrice < 0 {
		return false
	}
	if quantity == 0 || unitPrice == 0 {
		return true
	}
	return quantity <= money.MaxCents/unitPrice
}

type lineJSON struct {
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPrice"`
	SubtotalCents  int64  `json:"subtotal"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineJSON{
		ProductID:      l.ProductID,
		ProductName:    l.ProductName,
		Quantity:       l.Quantity,
		UnitPriceCents: l.UnitPriceCents,
		SubtotalCents:  l.Subtotal(),
	})
}

// UnmarshalJSON ignores any incoming subtotal.
func (l *Line) UnmarshalJSON(data []byte) error {
	var raw lineJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Line{
		ProductID:      raw.ProductID,
		ProductName:    raw.ProductName,
		Quantity:       max(raw.Quantity, 0),
		UnitPriceCents: max(raw.UnitPriceCents, 0),
	}
	return nil
}

// Cart is an ordered list of lines keyed by product id. The zero value is
// an empty cart.
type Cart struct {
	lines []Line
}

// AddItem appends a line with quantity 1. Adding a product that is
// already present fails with ErrDuplicateItem and leaves the cart as is.
func (c *Cart) AddItem(product domain.Product, defaultUnitPrice int64) error {
	for _, line := range c.lines {
		if line.ProductID == product.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, product.Name)
		}
	}
	if !subtotalFits(1, max(defaultUnitPrice, 0)) {
		return fmt.Errorf("%w: %s", ErrLineTooLarge, product.Name)
	}
	c.lines = append(c.lines, Line{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       1,
		UnitPriceCents: max(defaultUnitPrice, 0),
	})
	return nil
}

// UpdateItem sets quantity or unit price of the line at index. Negative
// values are clamped to zero. An edit that would push the line subtotal
// past money.MaxCents fails with ErrLineTooLarge and changes nothing.
func (c *Cart) UpdateItem(index int, field Field, value int64) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	line := c.lines[index]
	value = max(value, 0)
	switch field {
	case FieldQuantity:
		line.Quantity = value
	case FieldUnitPrice:
		line.UnitPriceCents = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if !line.InRange() {
		return fmt.Errorf("%w: %s", ErrLineTooLarge, line.ProductName)
	}
	c.lines[index] = line
	return nil
}

func (c *Cart) RemoveItem(index int) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// ComputedTotal is informational; the recorded sale total is the
// operator's manual amount.
func (c *Cart) ComputedTotal() int64 {
	var total int64
	for _, line := range c.lines {
		total += line.Subtotal()
	}
	return total
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// SaleItems converts the cart into the upstream sale payload.
func (c *Cart) SaleItems() []domain.SaleItem {
	items := make([]domain.SaleItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, domain.SaleItem{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       int(line.Quantity),
			UnitPriceCents: line.UnitPriceCents,
			SubtotalCents:  line.Subtotal(),
		})
	}
	return items
}

type cartJSON struct {
	Items         []Line `json:"items"`
	ComputedTotal int64  `json:"computedTotal"`
}

func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.lines
	if items == nil {
		items = []Line{}
	}
	return json.Marshal(cartJSON{Items: items, ComputedTotal: c.ComputedTotal()})
}

// UnmarshalJSON rebuilds the cart, dropping duplicate products so that a
// tampered payload cannot break the one-line-per-product invariant.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var raw cartJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.lines = nil
	seen := make(map[int64]struct{}, len(raw.Items))
	for _, line := range raw.Items {
		if _, dup := seen[line.ProductID]; dup || !line.InRange() {
			continue
		}
		seen[line.ProductID] = struct{}{}
		c.lines = append(c.lines, line)
	}
	return nil
}
