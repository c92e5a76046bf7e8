package handlers

import (
	"storefront/internal/models"
)

// deliveryTransition is the computed result of moving an order to a new
// delivery status, including the coupled payment-status side effects.
type deliveryTransition struct {
	DeliveryStatus string
	PaymentStatus  string
	StampPaidAt    bool
}

var validDeliveryStatuses = map[string]bool{
	models.DeliveryPending:    true,
	models.DeliveryProcessing: true,
	models.DeliveryShipped:    true,
	models.DeliveryDelivered:  true,
	models.DeliveryCancelled:  true,
}

// applyDeliveryTarget computes the staff-initiated delivery update:
//   - cancelled forces the payment status to cancelled;
//   - delivered marks an unreconciled order paid (cash on delivery is
//     presumed paid at the door) and stamps paidAt once;
//   - any other target resets a stuck paid flag back to pending for COD
//     orders that were never reconciled.
func applyDeliveryTarget(order models.Order, target string) (deliveryTransition, error) {
	if !validDeliveryStatuses[target] {
		return deliveryTransition{}, validationError{Field: "deliveryStatus"}
	}

	transition := deliveryTransition{
		DeliveryStatus: target,
		PaymentStatus:  order.PaymentStatus,
	}

	switch target {
	case models.DeliveryCancelled:
		transition.PaymentStatus = models.PaymentCancelled
	case models.DeliveryDelivered:
		if order.PaymentStatus != models.PaymentCompleted {
			transition.PaymentStatus = models.PaymentPaid
			if order.PaymentInfo.PaidAt == nil {
				transition.StampPaidAt = true
			}
		}
	default:
		if order.PaymentMethods == models.PaymentMethodCOD && order.PaymentStatus != models.PaymentCompleted {
			transition.PaymentStatus = models.PaymentPending
		}
	}

	return transition, nil
}

// canCustomerCancel allows cancellation only while the order has not started
// moving. Everything past pending needs staff intervention.
func canCustomerCancel(order models.Order) error {
	if order.DeliveryStatus != models.DeliveryPending {
		return invalidStateTransitionError{Action: "cancel", DeliveryStatus: order.DeliveryStatus}
	}
	return nil
}

// canEditShipping rejects customer edits once fulfilment has picked the
// order up.
func canEditShipping(order models.Order) error {
	if order.DeliveryStatus != models.DeliveryPending {
		return invalidStateTransitionError{Action: "edit", DeliveryStatus: order.DeliveryStatus}
	}
	return nil
}
