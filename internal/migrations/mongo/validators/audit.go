package validators

import "go.mongodb.org/mongo-driver/bson"

var AuditValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"request", "outcome", "attempts", "recorded_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"request": bson.M{
				"bsonType": "object",
			},
			"outcome": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"attempts": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"conflicts": bson.M{
				"bsonType": "array",
			},
			"recorded_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
