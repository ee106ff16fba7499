// Package orderrequest turns loosely typed cart state and order bodies into a
// validated order request. The storefront client and the order creation
// endpoint both go through the same rules here, so the two cannot drift.
package orderrequest

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RawArtwork is the nested artwork shape some cart payloads carry.
type RawArtwork struct {
	ID    Scalar `json:"id"`
	Title Scalar `json:"title"`
	Price Scalar `json:"price"`
}

// RawItem is an order line as received, before validation. Either the flat
// fields or the nested artwork may carry the reference and price; flat fields
// win when both are present.
type RawItem struct {
	ArtworkID Scalar      `json:"artworkId"`
	Title     Scalar      `json:"title"`
	Quantity  Scalar      `json:"quantity"`
	Price     Scalar      `json:"price"`
	Artwork   *RawArtwork `json:"artwork,omitempty"`
}

// CartLine is a cart entry as the cart store returns it.
type CartLine struct {
	LineID string `json:"id"`
	RawItem
}

// Body is the order creation request body.
type Body struct {
	Items       []RawItem `json:"items"`
	TotalAmount Scalar    `json:"totalAmount"`
	OrderID     string    `json:"orderId"`
}

type Item struct {
	ArtworkID string
	Title     string
	Quantity  int
	Price     decimal.Decimal
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Request is a fully validated order request. TotalAmount is in major
// currency units.
type Request struct {
	Items       []Item
	TotalAmount decimal.Decimal
}

// PayloadItem and Payload are the transport shape of a Request: every
// numeric field is a JSON number.
type PayloadItem struct {
	ArtworkID string  `json:"artworkId"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Payload struct {
	Items       []PayloadItem `json:"items"`
	TotalAmount float64       `json:"totalAmount"`
	OrderID     string        `json:"orderId,omitempty"`
}

func (r Request) Payload(orderID string) Payload {
	return Payload{
		Items: lo.Map(r.Items, func(it Item, _ int) PayloadItem {
			return PayloadItem{
				ArtworkID: it.ArtworkID,
				Title:     it.Title,
				Quantity:  it.Quantity,
				Price:     it.Price.InexactFloat64(),
			}
		}),
		TotalAmount: r.TotalAmount.InexactFloat64(),
		OrderID:     orderID,
	}
}

// Sum adds up price * quantity over items.
func Sum(items []Item) decimal.Decimal {
	return lo.Reduce(items, func(acc decimal.Decimal, it Item, _ int) decimal.Decimal {
		return acc.Add(it.Subtotal())
	}, decimal.Zero)
}
