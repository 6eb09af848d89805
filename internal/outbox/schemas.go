package outbox

import "example.com/ecotrack/libs/events"

// schemaCatalog maps each event type to the JSON schema registered for it.
var schemaCatalog = map[string]string{
	events.TypeEntryLogged:  entryLoggedSchema,
	events.TypeEntryRevised: entryRevisedSchema,
	events.TypeEntryDeleted: entryDeletedSchema,
}

const entryLoggedSchema = `{
  "type": "object",
  "title": "EntryLogged",
  "properties": {
    "entry_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string", "enum": ["Transport", "Energy", "Meal"]},
    "activity_detail": {"type": "string"},
    "amount": {"type": "number", "minimum": 0},
    "co2_impact": {"type": "number"},
    "description": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "user_id", "activity_type", "activity_detail", "amount", "co2_impact", "timestamp"],
  "additionalProperties": false
}`

const entryRevisedSchema = `{
  "type": "object",
  "title": "EntryRevised",
  "properties": {
    "entry_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity_type": {"type": "string", "enum": ["Transport", "Energy", "Meal"]},
    "activity_detail": {"type": "string"},
    "amount": {"type": "number", "minimum": 0},
    "co2_impact": {"type": "number"},
    "description": {"type": "string"},
    "timestamp": {"type": "string", "format": "date-time"},
    "revised_at": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "user_id", "activity_type", "activity_detail", "amount", "co2_impact", "timestamp", "revised_at"],
  "additionalProperties": false
}`

const entryDeletedSchema = `{
  "type": "object",
  "title": "EntryDeleted",
  "properties": {
    "entry_id": {"type": "string"},
    "user_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "user_id", "deleted_at"],
  "additionalProperties": false
}`
