package notify

import (
	"encoding/json"
	"time"
)

// StateSavedMessage announces that a company's state blob was saved.
// It carries only the scope and revision; consumers fetch the blob
// themselves if they need it.
type StateSavedMessage struct {
	CompanyID string    `json:"companyId"`
	Revision  int64     `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStateSavedMessage(companyID string, revision int64) *StateSavedMessage {
	return &StateSavedMessage{
		CompanyID: companyID,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

func (m *StateSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StateSavedMessageFromJSON(data []byte) (*StateSavedMessage, error) {
	var msg StateSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
