package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "krkperformance1",
			"name": "performances",
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
					"name": "entry",
					"type": "relation",
					"required": false,
					"collectionId": "krkwaitlist0001",
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
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["active", "ended"]
				},
				{
					"name": "avg_score",
					"type": "number",
					"required": false
				},
				{
					"name": "vote_count",
					"type": "number",
					"required": false,
					"onlyInt": true,
					"min": 0
				},
				{
					"name": "video_changed_at",
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
				"CREATE INDEX idx_performances_instance_status ON performances (instance, status)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("krkperformance1")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
