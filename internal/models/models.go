package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Role         Role               `bson:"role" json:"role"`
	RefreshToken string             `bson:"refreshToken,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProductImage is a catalog image reference
type ProductImage struct {
	URL     string `bson:"url" json:"url" yaml:"url"`
	AltText string `bson:"altText,omitempty" json:"altText,omitempty" yaml:"altText"`
}

// Product represents a product in the catalog
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name          string             `bson:"name" json:"name" yaml:"name"`
	Description   string             `bson:"description" json:"description" yaml:"description"`
	Price         float64            `bson:"price" json:"price" yaml:"price"`
	DiscountPrice float64            `bson:"discountPrice,omitempty" json:"discountPrice,omitempty" yaml:"discountPrice"`
	CountInStock  int                `bson:"countInStock" json:"countInStock" yaml:"countInStock"`
	SKU           string             `bson:"sku" json:"sku" yaml:"sku"`
	Category      string             `bson:"category" json:"category" yaml:"category"`
	Brand         string             `bson:"brand,omitempty" json:"brand,omitempty" yaml:"brand"`
	Sizes         []string           `bson:"sizes" json:"sizes" yaml:"sizes"`
	Colors        []string           `bson:"colors" json:"colors" yaml:"colors"`
	Collections   string             `bson:"collections,omitempty" json:"collections,omitempty" yaml:"collections"`
	Material      string             `bson:"material,omitempty" json:"material,omitempty" yaml:"material"`
	Gender        string             `bson:"gender,omitempty" json:"gender,omitempty" yaml:"gender"`
	Images        []ProductImage     `bson:"images" json:"images" yaml:"images"`
	IsFeatured    bool               `bson:"isFeatured" json:"isFeatured" yaml:"isFeatured"`
	IsPublished   bool               `bson:"isPublished" json:"isPublished" yaml:"isPublished"`
	Rating        float64            `bson:"rating" json:"rating" yaml:"rating"`
	NumReviews    int                `bson:"numReviews" json:"numReviews" yaml:"numReviews"`
	Sold          int64              `bson:"sold" json:"sold" yaml:"-"`
	Tags          []string           `bson:"tags,omitempty" json:"tags,omitempty" yaml:"tags"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt" yaml:"-"`
}

// FirstImage returns the url of the first product image, or ""
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

// EffectivePrice is the price a customer pays today
func (p *Product) EffectivePrice() float64 {
	if p.DiscountPrice > 0 && p.DiscountPrice < p.Price {
		return p.DiscountPrice
	}
	return p.Price
}

// CartItem is a line in a cart
type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
}

// Cart belongs to either a user or a guest, never both
type Cart struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID     *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	GuestID    string              `bson:"guestId,omitempty" json:"guestId,omitempty"`
	Items      []CartItem          `bson:"products" json:"products"`
	TotalPrice float64             `bson:"totalPrice" json:"totalPrice"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CartOwner identifies whose cart an operation targets
type CartOwner struct {
	UserID  *primitive.ObjectID
	GuestID string
}

// IsZero reports whether no owner is set
func (o CartOwner) IsZero() bool {
	return o.UserID == nil && o.GuestID == ""
}

// ShippingAddress is where an order is delivered
type ShippingAddress struct {
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
}

// CheckoutItem is a snapshot of a cart line taken when the checkout is created
type CheckoutItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
}

// Checkout is the staging record between cart and order
type Checkout struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID          primitive.ObjectID  `bson:"user" json:"user"`
	Items           []CheckoutItem      `bson:"checkoutItems" json:"checkoutItems"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string              `bson:"paymentMethod" json:"paymentMethod"`
	TotalPrice      float64             `bson:"totalPrice" json:"totalPrice"`
	PaymentStatus   PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	PaymentDetails  json.RawMessage     `bson:"paymentDetails,omitempty" json:"paymentDetails,omitempty"`
	IsPaid          bool                `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsFinalized     bool                `bson:"isFinalized" json:"isFinalized"`
	FinalizedAt     *time.Time          `bson:"finalizeAt,omitempty" json:"finalizeAt,omitempty"`
	OrderID         *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// OrderItem is a denormalized product line of an order
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product" json:"product"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	UserID          primitive.ObjectID  `bson:"user" json:"user"`
	CheckoutID      *primitive.ObjectID `bson:"checkoutId,omitempty" json:"checkoutId,omitempty"`
	Items           []OrderItem         `bson:"orderItems" json:"orderItems"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string              `bson:"paymentMethod" json:"paymentMethod"`
	TotalPrice      float64             `bson:"totalPrice" json:"totalPrice"`
	IsPaid          bool                `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	IsDelivered     bool                `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt     *time.Time          `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	PaymentStatus   PaymentStatus       `bson:"paymentStatus" json:"paymentStatus"`
	PaymentDetails  json.RawMessage     `bson:"paymentDetails,omitempty" json:"paymentDetails,omitempty"`
	Status          OrderStatus         `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Subscriber is a newsletter subscription
type Subscriber struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Email        string             `bson:"email" json:"email"`
	SubscribedAt time.Time          `bson:"subscribeAt" json:"subscribeAt"`
}

// PaymentStatus of a checkout or order
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

// OrderStatus is the fulfilment state managed by admins
type OrderStatus string

// Order statuses
const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// ParseOrderStatus validates an admin-supplied status
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}
