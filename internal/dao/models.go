package dao

import "time"

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

const (
	ProviderSMTP = "smtp"
	ProviderAPI  = "api-based"
)

// MailConfig is the single active outbound configuration. There is exactly
// one row, a save replaces it wholesale.
type MailConfig struct {
	Provider    string    `db:"provider" json:"provider"`
	Host        string    `db:"host" json:"host"`
	Port        int       `db:"port" json:"port"`
	User        string    `db:"user_" json:"user"`
	Secret      string    `db:"secret" json:"secret,omitempty"`
	FromAddress string    `db:"from_address" json:"from_address"`
	FromName    string    `db:"from_name" json:"from_name"`
	Enabled     bool      `db:"enabled" json:"enabled"`
	Simulate    bool      `db:"simulate" json:"simulate"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DispatchRecord is one attempt to deliver a rendered message. It is written
// as 'pending' before the attempt and moved exactly once to 'sent' or
// 'failed', never back.
type DispatchRecord struct {
	MessageId       string    `db:"message_id"`
	TemplateId      string    `db:"template_id"`
	Recipient       string    `db:"recipient"`
	RenderedSubject string    `db:"rendered_subject"`
	SourceEventRef  string    `db:"source_event_ref"`
	Status          string    `db:"status"`
	ErrorDetail     string    `db:"error_detail"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type DispatchLogEntry struct {
	MessageId string    `db:"message_id"`
	CreatedAt time.Time `db:"created_at"`
	Log       string    `db:"log"`
}
