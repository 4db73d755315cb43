package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "krkwaitlist0001",
			"name": "waitlist",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "instance",
					"type": "relation",
					"required": true,
					"collectionId": "krkinstances001",
					"maxSelect": 1,
					"cascadeDelete": false
				},
				{
					"name": "singer",
					"type": "text",
					"required": true
				},
				{
					"name": "song",
					"type": "text",
					"required": false
				},
				{
					"name": "video_ref",
					"type": "text",
					"required": false
				},
				{
					"name": "rotation",
					"type": "number",
					"required": false,
					"onlyInt": true,
					"min": 0
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["waiting", "singing", "done"]
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				},
				{
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_waitlist_instance_status ON waitlist (instance, status)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("krkwaitlist0001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
