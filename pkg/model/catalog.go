package model

type ResourceOwner struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Role     string `json:"role" bson:"role"`
	Active   bool   `json:"active" bson:"active"`
	TimeZone string `json:"time_zone,omitempty" bson:"time_zone,omitempty"`
	Phone    string `json:"phone,omitempty" bson:"phone,omitempty"`
}

type Offering struct {
	ID          string `json:"id" bson:"_id"`
	OwnerID     string `json:"owner_id" bson:"owner_id"`
	Name        string `json:"name" bson:"name"`
	DurationMin int    `json:"duration_min" bson:"duration_min"`
	Active      bool   `json:"active" bson:"active"`
}

type Requester struct {
	ID     string `json:"id" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Email  string `json:"email,omitempty" bson:"email,omitempty"`
	Phone  string `json:"phone,omitempty" bson:"phone,omitempty"`
	Active bool   `json:"active" bson:"active"`
}
