package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"property_id",
			"user_id",
			"start_date",
			"end_date",
			"status",
			"payment",
			"enable_payment",
			"is_active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"guests": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  50,
			},

			"nights": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"total_cost": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Pending",
					"Confirmed",
					"Cancelled",
				},
			},

			"payment": bson.M{
				"bsonType": "object",
				"required": []string{"status"},
				"properties": bson.M{
					"status": bson.M{
						"bsonType": "string",
						"enum": []string{
							"Pending",
							"Completed",
							"Failed",
						},
					},
					"transaction_id": bson.M{
						"bsonType": "string",
					},
				},
			},

			"enable_payment": bson.M{
				"bsonType": "bool",
			},

			"is_active": bson.M{
				"bsonType": "bool",
			},

			"linked_booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"checkout_expires_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
