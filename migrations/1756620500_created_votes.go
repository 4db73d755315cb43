package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "krkvotes0000001",
			"name": "votes",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "performance",
					"type": "relation",
					"required": true,
					"collectionId": "krkperformance1",
					"maxSelect": 1,
					"cascadeDelete": false
				},
				{
					"name": "device",
					"type": "text",
					"required": true
				},
				{
					"name": "score",
					"type": "number",
					"required": false,
					"onlyInt": true,
					"min": 0,
					"max": 10
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_votes_performance_device ON votes (performance, device)"
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("krkvotes0000001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
