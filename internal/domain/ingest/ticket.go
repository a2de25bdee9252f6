package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"fieldsync/internal/domain/record"
)

// applyUpdate returns the ticket document with data applied. Fields the server does not model
// are kept as they are.
func applyUpdate(payload json.RawMessage, data record.UpdateData, at time.Time) (json.RawMessage, error) {
	doc := map[string]any{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	current, _ := doc["status"].(string)

	switch u := data.(type) {
	case record.StatusTransition:
		// A transition already in effect is accepted so that retries stay harmless.
		if u.From != "" && u.From != current && u.Status != current {
			return nil, fmt.Errorf("%w: ticket is %q, update expects %q", ErrConflict, current, u.From)
		}
		doc["status"] = u.Status
		if u.Remarks != "" {
			doc["statusRemarks"] = u.Remarks
		}
	case record.DetailEdit:
		setString(doc, "title", u.Title)
		setString(doc, "description", u.Description)
		setString(doc, "category", u.Category)
		setString(doc, "priority", u.Priority)
	case record.Comment:
		comments, _ := doc["comments"].([]any)
		doc["comments"] = append(comments, map[string]any{
			"comment":  u.Comment,
			"authorId": u.AuthorID,
			"at":       at,
		})
	default:
		return nil, fmt.Errorf("%w: %T", record.ErrUnknownUpdate, data)
	}

	return json.Marshal(doc)
}

func setString(doc map[string]any, key string, v *string) {
	if v != nil {
		doc[key] = *v
	}
}
