package validators

import "go.mongodb.org/mongo-driver/bson"

var ApprovalValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"property_id",
			"user_id",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"message": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"approved",
					"rejected",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
