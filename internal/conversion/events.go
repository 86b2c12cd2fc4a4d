package conversion

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

const (
	detailMissingName   = "Missing PDF file name in Pub/Sub message"
	detailMalformedData = "Malformed Pub/Sub message data"
)

// PushEnvelope is the body Pub/Sub push subscriptions POST to us.
type PushEnvelope struct {
	Message      Message `json:"message"`
	Subscription string  `json:"subscription,omitempty"`
}

// Message carries the file reference. Data is the base64 text of a push
// envelope; it is only decoded when no attribute names the object.
type Message struct {
	Data       string            `json:"data,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MessageID  string            `json:"messageId,omitempty"`
}

type inlinePayload struct {
	FileName string `json:"file_name"`
}

// FileName resolves the object name: attribute "name", then attribute
// "objectId", then "file_name" inside the inline JSON payload.
func (m Message) FileName() (string, error) {
	if name := attributeName(m.Attributes); name != "" {
		return name, nil
	}
	if m.Data == "" {
		return "", badRequest(detailMissingName)
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return "", &Error{Kind: KindBadRequest, Detail: detailMalformedData, Err: err}
	}
	return inlineFileName(raw)
}

// ResolveFileName applies the FileName rules to a pulled message, whose
// data arrives already decoded.
func ResolveFileName(attrs map[string]string, data []byte) (string, error) {
	if name := attributeName(attrs); name != "" {
		return name, nil
	}
	if len(data) == 0 {
		return "", badRequest(detailMissingName)
	}
	return inlineFileName(data)
}

func attributeName(attrs map[string]string) string {
	if name := attrs["name"]; name != "" {
		return name
	}
	return attrs["objectId"]
}

func inlineFileName(data []byte) (string, error) {
	var payload inlinePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &Error{Kind: KindBadRequest, Detail: detailMalformedData, Err: err}
	}
	if payload.FileName == "" {
		return "", badRequest(detailMissingName)
	}
	return payload.FileName, nil
}

// CompletionEvent is published after a conversion is recorded.
type CompletionEvent struct {
	ID            string    `json:"id"`
	OriginalFile  string    `json:"original_file"`
	ConvertedFile string    `json:"converted_file"`
	SourceName    string    `json:"source_name,omitempty"`
	Bucket        string    `json:"bucket"`
	CompletedAt   time.Time `json:"completed_at"`
}
