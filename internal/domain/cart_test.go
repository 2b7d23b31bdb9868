package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleCart() *Cart {
	return &Cart{
		ID:       "cart-1",
		UserID:   "user-1",
		Currency: Currency,
		Items: []CartItem{
			{ProductID: "p-1", Name: "Inner tube", Price: 600, Quantity: 2},
			{ProductID: "p-2", Name: "Bike pump", Price: 2800, Quantity: 1},
		},
	}
}

func TestCart_TotalAmount(t *testing.T) {
	c := sampleCart()
	assert.Equal(t, int64(4000), c.TotalAmount())

	empty := &Cart{}
	assert.Zero(t, empty.TotalAmount())
}

func TestCart_ItemCount(t *testing.T) {
	c := sampleCart()
	assert.Equal(t, 3, c.ItemCount())
}

func TestCart_FindItemIndex(t *testing.T) {
	c := sampleCart()
	assert.Equal(t, 0, c.FindItemIndex("p-1"))
	assert.Equal(t, 1, c.FindItemIndex("p-2"))
	assert.Equal(t, -1, c.FindItemIndex("p-404"))
}

func TestCart_Summary(t *testing.T) {
	c := sampleCart()
	s := c.Summary()

	assert.Equal(t, int64(4000), s.Total)
	// 20% VAT-inclusive: net £33.33, VAT £6.67.
	assert.Equal(t, int64(3333), s.NetAmount)
	assert.Equal(t, int64(667), s.VATAmount)
	assert.Equal(t, s.Total, s.NetAmount+s.VATAmount, "net + VAT must equal gross exactly")
	assert.Equal(t, "GBP", s.Currency)
	assert.Equal(t, 3, s.ItemCount)

	assert.Equal(t, "£40.00", s.Formatted.Total)
	assert.Equal(t, "£33.33", s.Formatted.NetAmount)
	assert.Equal(t, "£6.67", s.Formatted.VATAmount)
}

func TestCart_Summary_Empty(t *testing.T) {
	c := &Cart{Currency: Currency}
	s := c.Summary()
	assert.Zero(t, s.Total)
	assert.Zero(t, s.NetAmount)
	assert.Zero(t, s.VATAmount)
	assert.Equal(t, "£0.00", s.Formatted.Total)
}
