package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "krkparticipant1",
			"name": "participants",
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
					"name": "name",
					"type": "text",
					"required": true
				},
				{
					"name": "phone",
					"type": "text",
					"required": false
				},
				{
					"name": "email",
					"type": "email",
					"required": false
				},
				{
					"name": "device",
					"type": "text",
					"required": true
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
				"CREATE UNIQUE INDEX idx_participants_instance_device ON participants (instance, device)",
				"CREATE UNIQUE INDEX idx_participants_instance_email ON participants (instance, email) WHERE email != ''"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("krkparticipant1")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
