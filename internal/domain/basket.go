package domain

// Bounds on basket lines. They keep ItemCount and Total far from int64
// overflow.
const (
	MaxQuantity = 1000
	// MaxPrice is one billion in currency units.
	MaxPrice Money = 100_000_000_000
)

// BasketItem is one line of a customer basket. Quantity is always >= 1 for
// items held in a basket; a line that would reach zero is removed instead.
type BasketItem struct {
	ID          int    `json:"id" validate:"gt=0"`
	ProductID   int    `json:"productId,omitempty"`
	ProductName string `json:"productName"`
	PictureURL  string `json:"pictureUrl"`
	Price       Money  `json:"price" validate:"gte=0,lte=100000000000"`
	Brand       string `json:"brand"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity" validate:"gte=1,lte=1000"`
}

// CustomerBasket is the basket mirrored between local persistence and the
// backend basket service. Item ids are unique within a basket.
type CustomerBasket struct {
	ID    string       `json:"id" validate:"required"`
	Items []BasketItem `json:"items" validate:"required,dive"`
}

// NewBasket returns an empty basket with the given id. Items is non-nil so the
// basket serializes as `"items": []`.
func NewBasket(id string) CustomerBasket {
	return CustomerBasket{ID: id, Items: []BasketItem{}}
}

// Clone returns a copy that shares no backing storage with b.
func (b CustomerBasket) Clone() CustomerBasket {
	out := CustomerBasket{ID: b.ID}
	if b.Items != nil {
		out.Items = make([]BasketItem, len(b.Items))
		copy(out.Items, b.Items)
	}
	return out
}

// IndexOf returns the position of the item with the given id, or -1.
func (b CustomerBasket) IndexOf(id int) int {
	for i, item := range b.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// ItemCount is the sum of all line quantities.
func (b CustomerBasket) ItemCount() int {
	count := 0
	for _, item := range b.Items {
		count += item.Quantity
	}
	return count
}

// Total is the sum of price times quantity over all lines.
func (b CustomerBasket) Total() Money {
	var total Money
	for _, item := range b.Items {
		total += item.Price.Mul(item.Quantity)
	}
	return total
}
