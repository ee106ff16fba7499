package orderrequest

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const defaultTitle = "Untitled Artwork"

// TotalTolerance is how far a stated total may differ from the items' sum.
var TotalTolerance = decimal.New(1, -2)

// Normalize validates an order creation body. The total is checked first,
// then every item, then that the two agree. Any failure rejects the whole
// request.
func Normalize(body Body) (Request, error) {
	if !body.TotalAmount.Present() {
		return Request{}, missing(-1, "totalAmount")
	}
	t, err := body.TotalAmount.Float()
	if err != nil {
		return Request{}, invalidType(-1, "totalAmount")
	}
	if t <= 0 {
		return Request{}, invalidValue(-1, "totalAmount", "must be greater than zero")
	}

	items, err := NormalizeItems(body.Items)
	if err != nil {
		return Request{}, err
	}

	total := decimal.NewFromFloat(t)
	sum := Sum(items)
	if total.Sub(sum).Abs().GreaterThan(TotalTolerance) {
		return Request{}, invalidValue(-1, "totalAmount",
			fmt.Sprintf("does not match the items total %s", sum.StringFixed(2)))
	}

	return Request{Items: items, TotalAmount: total}, nil
}

// Build turns cart lines into a Request, computing the total from the lines.
func Build(lines []CartLine) (Request, error) {
	items, err := NormalizeItems(lo.Map(lines, func(l CartLine, _ int) RawItem {
		return l.RawItem
	}))
	if err != nil {
		return Request{}, err
	}

	return Request{Items: items, TotalAmount: Sum(items)}, nil
}

// NormalizeItems validates every item and stops at the first failure.
func NormalizeItems(raw []RawItem) ([]Item, error) {
	if len(raw) == 0 {
		return nil, missing(-1, "items")
	}

	items := make([]Item, 0, len(raw))
	for i, r := range raw {
		item, err := normalizeItem(i, r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func normalizeItem(index int, raw RawItem) (Item, error) {
	idVal, titleVal, priceVal := raw.ArtworkID, raw.Title, raw.Price
	if raw.Artwork != nil {
		if !idVal.Present() {
			idVal = raw.Artwork.ID
		}
		if !titleVal.Present() {
			titleVal = raw.Artwork.Title
		}
		if !priceVal.Present() {
			priceVal = raw.Artwork.Price
		}
	}

	// existence: artwork reference, quantity, price
	var absent []string
	if !idVal.Present() {
		absent = append(absent, "artworkId")
	} else if text, ok := idVal.Text(); ok && strings.TrimSpace(text) == "" {
		absent = append(absent, "artworkId")
	}
	if !raw.Quantity.Present() {
		absent = append(absent, "quantity")
	}
	if !priceVal.Present() {
		absent = append(absent, "price")
	}
	if len(absent) > 0 {
		return Item{}, missing(index, absent...)
	}

	artworkID, ok := idVal.Text()
	if !ok {
		return Item{}, invalidType(index, "artworkId")
	}
	quantity, err := raw.Quantity.Float()
	if err != nil {
		return Item{}, invalidType(index, "quantity")
	}
	price, err := priceVal.Float()
	if err != nil {
		return Item{}, invalidType(index, "price")
	}

	if quantity <= 0 || quantity != math.Trunc(quantity) || quantity > math.MaxInt32 {
		return Item{}, invalidValue(index, "quantity", "must be a positive integer")
	}
	if price <= 0 {
		return Item{}, invalidValue(index, "price", "must be greater than zero")
	}

	title, _ := titleVal.Text()
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}

	return Item{
		ArtworkID: strings.TrimSpace(artworkID),
		Title:     title,
		Quantity:  int(quantity),
		Price:     decimal.NewFromFloat(price),
	}, nil
}
