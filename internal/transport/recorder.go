package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	courrier "github.com/ouvrio/courrier"
)

// Recorder captures the would-be payload of a simulated dispatch to disk so
// an operator can open the exact html that would have gone out.
type Recorder struct {
	dir string
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

type recordedPayload struct {
	MessageId  string    `json:"message_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Record writes <dir>/<messageId>.html and <dir>/<messageId>.json.
func (r *Recorder) Record(messageId string, msg courrier.Message) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("could not create simulation dir, %w", err)
	}

	htmlPath := filepath.Join(r.dir, messageId+".html")
	if err := os.WriteFile(htmlPath, []byte(msg.HTML), 0644); err != nil {
		return fmt.Errorf("could not write simulated html, %w", err)
	}

	payload := recordedPayload{
		MessageId:  messageId,
		From:       msg.From.String(),
		To:         msg.To,
		Subject:    msg.Subject,
		Text:       msg.Text,
		RecordedAt: time.Now().In(time.UTC),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal simulated payload, %w", err)
	}
	jsonPath := filepath.Join(r.dir, messageId+".json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("could not write simulated payload, %w", err)
	}
	return nil
}
