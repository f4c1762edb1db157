package validators

import "go.mongodb.org/mongo-driver/bson"

var ResourceOwnerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "role", "active"},
		"properties": bson.M{
			"name":      bson.M{"bsonType": "string", "minLength": 1, "maxLength": 100},
			"role":      bson.M{"bsonType": "string", "minLength": 1},
			"active":    bson.M{"bsonType": "bool"},
			"time_zone": bson.M{"bsonType": "string"},
			"phone":     bson.M{"bsonType": "string", "pattern": `^(|\+[1-9]\d{7,14})$`},
		},
	},
}

var OfferingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"owner_id", "name", "duration_min", "active"},
		"properties": bson.M{
			"owner_id":     bson.M{"bsonType": "string", "minLength": 1},
			"name":         bson.M{"bsonType": "string", "minLength": 1, "maxLength": 100},
			"duration_min": bson.M{"bsonType": []string{"int", "long"}, "minimum": 1, "maximum": 1440},
			"active":       bson.M{"bsonType": "bool"},
		},
	},
}

var RequesterValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"name", "active"},
		"properties": bson.M{
			"name":   bson.M{"bsonType": "string", "minLength": 1, "maxLength": 100},
			"email":  bson.M{"bsonType": "string"},
			"phone":  bson.M{"bsonType": "string", "pattern": `^(|\+[1-9]\d{7,14})$`},
			"active": bson.M{"bsonType": "bool"},
		},
	},
}
