package domain

type ShippingAddress struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Street    string `json:"street" validate:"required"`
	City      string `json:"city" validate:"required"`
	Country   string `json:"country" validate:"required"`
}

type DeliveryMethod struct {
	ID           int    `json:"id"`
	ShortName    string `json:"shortName"`
	Description  string `json:"description"`
	DeliveryTime string `json:"deliveryTime"`
	Cost         Money  `json:"cost"`
}

type OrderItem struct {
	ProductID   int    `json:"productId"`
	ProductName string `json:"productName"`
	PictureURL  string `json:"pictureUrl"`
	Price       Money  `json:"price"`
	Quantity    int    `json:"quantity"`
}

type Order struct {
	ID                 int             `json:"id"`
	BuyerEmail         string          `json:"buyerEmail"`
	OrderDate          string          `json:"orderDate"`
	Status             string          `json:"status"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	DeliveryMethod     string          `json:"deliveryMethod"`
	DeliveryMethodCost Money           `json:"deliveryMethodCost"`
	Items              []OrderItem     `json:"items"`
	SubTotal           Money           `json:"subTotal"`
	Total              Money           `json:"total"`
	PaymentIntentID    string          `json:"paymentIntentId,omitempty"`
}

// OrderRequest is the payload for placing an order from a basket.
type OrderRequest struct {
	BasketID         string          `json:"basketId"`
	DeliveryMethodID int             `json:"deliveryMethodId"`
	ShippingAddress  ShippingAddress `json:"shippingAddress"`
}

// Order statuses the admin console can set.
const (
	OrderStatusPending    = "Pending"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)
