package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery statuses.
const (
	DeliveryPending    = "pending"
	DeliveryProcessing = "processing"
	DeliveryShipped    = "shipped"
	DeliveryDelivered  = "delivered"
	DeliveryCancelled  = "cancelled"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentCompleted = "completed"
	PaymentCancelled = "cancelled"
)

// Payment methods.
const (
	PaymentMethodCOD = "cod"
	PaymentMethodQR  = "qr"
)

// OrderItem is one line of a placed order. Price is frozen at order time and
// never re-read from the catalog.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Size      string             `bson:"size" json:"size"`
	Price     float64            `bson:"price" json:"price"`
}

// PaymentInfo carries the reconciliation metadata recorded when an inbound
// bank transfer is matched to the order.
type PaymentInfo struct {
	TransactionID   int64      `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	Gateway         string     `bson:"gateway,omitempty" json:"gateway,omitempty"`
	TransactionDate string     `bson:"transactionDate,omitempty" json:"transactionDate,omitempty"`
	AccountNumber   string     `bson:"accountNumber,omitempty" json:"accountNumber,omitempty"`
	TransferAmount  float64    `bson:"transferAmount,omitempty" json:"transferAmount,omitempty"`
	ReferenceCode   string     `bson:"referenceCode,omitempty" json:"referenceCode,omitempty"`
	Content         string     `bson:"content,omitempty" json:"content,omitempty"`
	PaidAt          *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// Order is the persisted order document. The _id is a UUID string so payment
// narration can reference the order even when the gateway strips hyphens.
type Order struct {
	ID             string             `bson:"_id" json:"id"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	LastName       string             `bson:"lastName" json:"lastName"`
	CompanyName    string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
	Country        string             `bson:"country" json:"country"`
	Street         string             `bson:"street" json:"street"`
	Apartment      string             `bson:"apartment,omitempty" json:"apartment,omitempty"`
	Cities         string             `bson:"cities" json:"cities"`
	State          string             `bson:"state" json:"state"`
	Phone          string             `bson:"phone" json:"phone"`
	ZipCode        string             `bson:"zipCode" json:"zipCode"`
	Email          string             `bson:"email" json:"email"`
	DeliveryStatus string             `bson:"deliveryStatus" json:"deliveryStatus"`
	PaymentMethods string             `bson:"paymentMethods" json:"paymentMethods"`
	PaymentStatus  string             `bson:"paymentStatus" json:"paymentStatus"`
	Items          []OrderItem        `bson:"items" json:"items"`
	TotalAmount    float64            `bson:"totalAmount" json:"totalAmount"`
	PaymentInfo    PaymentInfo        `bson:"paymentInfo" json:"paymentInfo"`
	IdempotencyKey string             `bson:"idempotencyKey,omitempty" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
	DeletedAt      *time.Time         `bson:"deletedAt" json:"deletedAt,omitempty"`
}
