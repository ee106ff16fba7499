package razorpay

import (
	"encoding/json"
	"strconv"
)

// MaxNoteLength is the gateway's limit on a single note value.
const MaxNoteLength = 256

type NoteItem struct {
	ArtworkID string `json:"id"`
	Quantity  int    `json:"qty"`
	Price     string `json:"price"`
}

// Notes builds the order notes: the store order id when known, the item
// count, and a JSON item summary. Trailing items are dropped from the
// summary until it fits in one note.
func Notes(orderID string, items []NoteItem) map[string]string {
	notes := map[string]string{"itemCount": strconv.Itoa(len(items))}
	if orderID != "" {
		notes["orderId"] = orderID
	}

	for n := len(items); n > 0; n-- {
		b, err := json.Marshal(items[:n])
		if err != nil {
			break
		}
		if len(b) <= MaxNoteLength {
			notes["items"] = string(b)
			break
		}
	}
	return notes
}
