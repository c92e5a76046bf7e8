package handlers

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type validationError struct {
	Field string
}

func (e validationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}

type emptyCartError struct{}

func (emptyCartError) Error() string {
	return "cart is empty"
}

type productUnavailableError struct {
	ProductID primitive.ObjectID
}

func (e productUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID.Hex())
}

type invalidStateTransitionError struct {
	Action         string
	DeliveryStatus string
}

func (e invalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in delivery status %q", e.Action, e.DeliveryStatus)
}
