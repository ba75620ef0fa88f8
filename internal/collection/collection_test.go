package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiktor/apigen/internal/collection"
)

const sampleCollection = `{
	"info": {
		"_postman_id": "6b9e2c3a-1f0d-4a1b-9c7e-8d2f5a4b3c21",
		"name": "Petstore",
		"description": "Pet management API",
		"schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"
	},
	"item": [
		{
			"name": "pets",
			"item": [
				{
					"name": "List pets",
					"request": {
						"method": "GET",
						"url": {
							"raw": "https://api.example.com/v1/pets?limit=10",
							"path": ["v1", "pets"],
							"query": [
								{"key": "limit", "value": "10", "description": "max results"}
							]
						},
						"description": "Returns all pets, paginated."
					},
					"response": [
						{"name": "ok", "code": 200, "body": "[{\"id\": 1, \"name\": \"rex\"}]"}
					]
				},
				{
					"name": "admin",
					"item": [
						{
							"name": "Delete pet",
							"request": {
								"method": "DELETE",
								"url": "https://api.example.com/v1/pets/:id",
								"description": {"content": "Removes a pet permanently."}
							}
						}
					]
				}
			]
		},
		{
			"name": "Create pet",
			"request": {
				"method": "POST",
				"url": {"raw": "https://api.example.com/v1/pets", "path": ["v1", "pets"]},
				"header": [
					{"key": "Content-Type", "value": "application/json"}
				],
				"body": {"mode": "raw", "raw": "{\"name\": \"rex\"}"}
			}
		}
	]
}`

func TestParse(t *testing.T) {
	c, err := collection.Parse([]byte(sampleCollection))
	require.NoError(t, err)

	assert.Equal(t, "Petstore", c.Info.Name)
	assert.Equal(t, "Pet management API", c.Info.Description.String())
	require.Len(t, c.Item, 2)
	assert.True(t, c.Item[0].IsFolder())
	assert.False(t, c.Item[1].IsFolder())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", "not a collection", collection.ErrInvalidFormat},
		{"missing info", `{"item": [{"name": "x"}]}`, collection.ErrMissingInfo},
		{"no items", `{"info": {"name": "empty"}, "item": []}`, collection.ErrEmptyCollection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collection.Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFlatten(t *testing.T) {
	c, err := collection.Parse([]byte(sampleCollection))
	require.NoError(t, err)

	endpoints := c.Flatten()
	require.Len(t, endpoints, 3)

	list := endpoints[0]
	assert.Equal(t, "List pets", list.Name)
	assert.Equal(t, "GET", list.Method)
	assert.Equal(t, "pets", list.Folder)
	assert.Equal(t, "pets/List pets", list.Title())
	assert.Equal(t, "/v1/pets", list.Path)
	assert.Equal(t, "Returns all pets, paginated.", list.Description)

	del := endpoints[1]
	assert.Equal(t, "pets/admin", del.Folder)
	assert.Equal(t, "Removes a pet permanently.", del.Description)
	assert.Equal(t, "/v1/pets/:id", del.Path)

	create := endpoints[2]
	assert.Equal(t, "", create.Folder)
	assert.Equal(t, "Create pet", create.Title())
	assert.Equal(t, "{\"name\": \"rex\"}", create.Body)
}

func TestEndpointDocument(t *testing.T) {
	c, err := collection.Parse([]byte(sampleCollection))
	require.NoError(t, err)

	endpoints := c.Flatten()
	require.Len(t, endpoints, 3)

	doc := endpoints[0].Document()
	assert.Contains(t, doc, "# pets/List pets")
	assert.Contains(t, doc, "GET https://api.example.com/v1/pets?limit=10")
	assert.Contains(t, doc, "Returns all pets, paginated.")
	assert.Contains(t, doc, "- limit=10 (max results)")
	assert.Contains(t, doc, "Example response 'ok' (200):")

	doc = endpoints[2].Document()
	assert.Contains(t, doc, "Request body:")
	assert.Contains(t, doc, "- Content-Type: application/json")
}

func TestEndpointMeta(t *testing.T) {
	c, err := collection.Parse([]byte(sampleCollection))
	require.NoError(t, err)

	meta := c.Flatten()[0].Meta()
	assert.Equal(t, "GET", meta["method"])
	assert.Equal(t, "/v1/pets", meta["path"])
	assert.Equal(t, "pets", meta["folder"])
	assert.Equal(t, "pets/List pets", meta["endpoint"])
}
