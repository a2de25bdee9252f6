package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/domain/record"
)

// Item is one server-side record of a resource collection.
type Item struct {
	ID        string
	Domain    record.Domain
	Payload   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is the wire form of an item: the payload object with id, createdAt and updatedAt set.
func (i *Item) Document() (json.RawMessage, error) {
	doc := map[string]any{}
	if len(i.Payload) > 0 {
		if err := json.Unmarshal(i.Payload, &doc); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", i.Domain, i.ID, err)
		}
	}
	doc["id"] = i.ID
	doc["createdAt"] = i.CreatedAt.UTC()
	doc["updatedAt"] = i.UpdatedAt.UTC()
	return json.Marshal(doc)
}

// Reference keys served at GET /{key}.
const (
	RefSites            = "sites"
	RefAssetAreas       = "asset-areas"
	RefTicketCategories = "ticket-categories"
)

var ReferenceKeys = []string{RefSites, RefAssetAreas, RefTicketCategories}

// DefaultReferences seeds a fresh store.
var DefaultReferences = map[string]json.RawMessage{
	RefSites:            json.RawMessage(`[]`),
	RefAssetAreas:       json.RawMessage(`[]`),
	RefTicketCategories: json.RawMessage(`[{"id":"electrical","name":"Electrical"},{"id":"hvac","name":"HVAC"},{"id":"plumbing","name":"Plumbing"}]`),
}
