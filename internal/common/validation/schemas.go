// internal/common/validation/schemas.go
package validation

const uuidPattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

var (
	LoanRequest = MustCompile("loan request", `{
		"type": "object",
		"required": ["item_id", "start_date", "end_date"],
		"additionalProperties": false,
		"properties": {
			"item_id":      {"type": "string", "pattern": "`+uuidPattern+`"},
			"community_id": {"type": ["string", "null"], "pattern": "`+uuidPattern+`"},
			"start_date":   {"type": "string", "format": "date-time"},
			"end_date":     {"type": "string", "format": "date-time"}
		}
	}`)

	LoanResponse = MustCompile("loan response", `{
		"type": "object",
		"required": ["accept"],
		"properties": {
			"accept": {"type": "boolean"}
		}
	}`)

	MemberUpdate = MustCompile("member update", `{
		"type": "object",
		"additionalProperties": false,
		"minProperties": 1,
		"properties": {
			"role":   {"type": "string", "enum": ["ADMIN", "MEMBER"]},
			"status": {"type": "string", "enum": ["PENDING", "ACCEPTED", "REJECTED"]}
		}
	}`)

	NotificationToggle = MustCompile("notification toggle", `{
		"type": "object",
		"required": ["enabled"],
		"properties": {
			"enabled": {"type": "boolean"}
		}
	}`)

	Announcement = MustCompile("announcement", `{
		"type": "object",
		"required": ["title", "message"],
		"properties": {
			"title":   {"type": "string", "minLength": 1, "maxLength": 255},
			"message": {"type": "string", "minLength": 1, "maxLength": 512}
		}
	}`)

	LoanActionJob = MustCompile("loan action job", `{
		"type": "object",
		"required": ["loanId", "actorId", "action"],
		"properties": {
			"loanId":  {"type": "string", "pattern": "`+uuidPattern+`"},
			"actorId": {"type": "string", "pattern": "`+uuidPattern+`"},
			"action":  {"type": "string", "enum": ["respond", "ratify", "signal-return", "confirm-return"]},
			"accept":  {"type": "boolean"}
		}
	}`)

	NotifyUsersJob = MustCompile("notify users job", `{
		"type": "object",
		"required": ["recipientIds", "title", "message"],
		"properties": {
			"recipientIds": {"type": "array", "items": {"type": "string", "pattern": "`+uuidPattern+`"}},
			"title":        {"type": "string", "minLength": 1, "maxLength": 255},
			"message":      {"type": "string", "minLength": 1, "maxLength": 512},
			"severity":     {"type": "string", "enum": ["INFO", "SUCCESS", "WARNING", "ERROR"]},
			"link":         {"type": "string"}
		}
	}`)
)
