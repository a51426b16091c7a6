package validators

import "go.mongodb.org/mongo-driver/bson"

// dateRange matches model.DateRange as stored inside a property.
var dateRange = bson.M{
	"bsonType": "object",
	"required": []string{"start", "end"},
	"properties": bson.M{
		"start": bson.M{"bsonType": "date"},
		"end":   bson.M{"bsonType": "date"},
	},
}

// PropertyValidator only constrains the fields this module reads or writes; listings own the
// rest of the document.
var PropertyValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"host_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"host_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"instant_booking": bson.M{
				"bsonType": "bool",
			},

			"check_in_after": bson.M{
				"bsonType": "string",
				"pattern":  "^([01][0-9]|2[0-3]):[0-5][0-9]$",
			},

			"occupied_ranges": bson.M{
				"bsonType": []string{"array", "null"},
				"items":    dateRange,
			},

			"blocked_ranges": bson.M{
				"bsonType": []string{"array", "null"},
				"items":    dateRange,
			},
		},
	},
}
