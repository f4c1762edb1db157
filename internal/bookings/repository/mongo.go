package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CommitmentsCollection  = "Commitments"
	TransactionsCollection = "Booking_transactions"
	AuditCollection        = "Booking_audit"
	OwnersCollection       = "Resource_owners"
	OfferingsCollection    = "Offerings"
	RequestersCollection   = "Requesters"
)

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged: wrapping it would detach the
// operation from the session.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	if remaining := time.Until(deadline); remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}
	return context.WithTimeout(ctx, timeout)
}

// expiredExpr matches documents whose expires_at has passed by the server
// clock. Every host judges expiry by the same clock this way.
func expiredExpr() bson.M {
	return bson.M{"$lte": bson.A{"$expires_at", "$$NOW"}}
}

func liveExpr() bson.M {
	return bson.M{"$gt": bson.A{"$expires_at", "$$NOW"}}
}
