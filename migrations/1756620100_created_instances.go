package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "krkinstances001",
			"name": "instances",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "name",
					"type": "text",
					"required": true
				},
				{
					"name": "code",
					"type": "text",
					"required": true
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["active", "paused", "closed"]
				},
				{
					"name": "owner",
					"type": "text",
					"required": false
				},
				{
					"name": "expires_at",
					"type": "date",
					"required": false
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
				"CREATE UNIQUE INDEX idx_instances_code ON instances (code)",
				"CREATE INDEX idx_instances_owner ON instances (owner)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("krkinstances001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
