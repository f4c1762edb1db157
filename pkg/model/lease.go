package model

import "time"

// Lease is one held lock key. Owner is the random token of the holder.
type Lease struct {
	Key       string    `json:"key" bson:"_id"`
	Owner     string    `json:"owner" bson:"owner"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
