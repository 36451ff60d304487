package review

import "encoding/json"

// Event payloads use stable JSON field names; they are read back by the
// history projector and by external clients.

type fieldPayload struct {
	Position uint32 `json:"position"`
	Content  string `json:"content"`
	Reviewed *bool  `json:"reviewed,omitempty"`
}

type tagPayload struct {
	Content  string `json:"content"`
	Action   bool   `json:"action"`
	Reviewed *bool  `json:"reviewed,omitempty"`
}

type moveFromPayload struct {
	From string `json:"from"`
}

type moveToPayload struct {
	To string `json:"to"`
}

type fieldSnapshot struct {
	Position uint32 `json:"position"`
	Content  string `json:"content"`
}

type noteCreatedPayload struct {
	Reviewed bool            `json:"reviewed"`
	Fields   []fieldSnapshot `json:"fields"`
	Tags     []string        `json:"tags"`
}

type fieldDeniedPayload struct {
	DeniedContent  string `json:"denied_content"`
	CurrentContent string `json:"current_content"`
	HadCurrent     bool   `json:"had_current"`
}

type tagDeniedPayload struct {
	DeniedContent string `json:"denied_content"`
	Action        bool   `json:"action"`
}

type moveDeniedPayload struct {
	Type       string `json:"type"`
	TargetDeck int64  `json:"target_deck"`
}

func marshalPayload(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Cause: err}
	}
	return raw, nil
}

func boolPtr(b bool) *bool { return &b }
