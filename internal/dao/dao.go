package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNoMailConfig = errors.New("no mail config has been saved")

type DAO interface {
	LoadMailConfig() (*MailConfig, error)
	SaveMailConfig(cfg MailConfig) error

	AddDispatchRecord(rec DispatchRecord) error
	SetDispatchStatus(messageId string, status string, errorDetail string) error
	GetDispatchHistory(limit int) ([]DispatchRecord, error)

	AddDispatchLogEntry(messageId, log string) error
	GetDispatchLog(messageId string) ([]DispatchLogEntry, error)
}

func NewSQLite(path string) (DAO, error) {
	lite := &sqlite{path: path}
	err := lite.ensureSchema()
	return lite, err
}

type sqlite struct {
	db   *sqlx.DB
	path string
}

func (s *sqlite) LoadMailConfig() (*MailConfig, error) {
	q := `SELECT provider, host, port, user_, secret, from_address, from_name, enabled, simulate, updated_at
	      FROM mail_config WHERE id = 1`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var cfg MailConfig
	err = db.Get(&cfg, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMailConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mail config, %w", err)
	}
	return &cfg, nil
}

func (s *sqlite) SaveMailConfig(cfg MailConfig) (err error) {
	q := `
	INSERT INTO mail_config (id, provider, host, port, user_, secret, from_address, from_name, enabled, simulate, updated_at)
	VALUES (1, :provider, :host, :port, :user_, :secret, :from_address, :from_name, :enabled, :simulate, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		provider = excluded.provider,
		host = excluded.host,
		port = excluded.port,
		user_ = excluded.user_,
		secret = excluded.secret,
		from_address = excluded.from_address,
		from_name = excluded.from_name,
		enabled = excluded.enabled,
		simulate = excluded.simulate,
		updated_at = excluded.updated_at
	`
	db, err := s.getDB()
	if err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().In(time.UTC)
	_, err = db.NamedExec(q, cfg)
	if err != nil {
		return fmt.Errorf("failed to save mail config, %w", err)
	}
	return nil
}

func (s *sqlite) AddDispatchRecord(rec DispatchRecord) (err error) {
	q := `
	INSERT INTO dispatch (message_id, template_id, recipient, rendered_subject, source_event_ref, status, error_detail, created_at, updated_at)
	VALUES (:message_id, :template_id, :recipient, :rendered_subject, :source_event_ref, :status, :error_detail, :created_at, :updated_at)
	`
	var tx *sqlx.Tx
	tx, err = s.getTX()
	if err != nil {
		return fmt.Errorf("failed to get transaction, %w", err)
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
			return
		}
		_ = tx.Rollback()
	}()

	now := time.Now().In(time.UTC)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = tx.NamedExec(q, rec)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record, %w", err)
	}

	err = s.addDispatchLogEntryTx(tx, rec.MessageId, fmt.Sprintf("record created in state '%s'", rec.Status))
	return err
}

// SetDispatchStatus moves a record from pending to its terminal state. The
// guard on status makes the transition forward-only, a second call on the
// same record is an error.
func (s *sqlite) SetDispatchStatus(messageId string, status string, errorDetail string) (err error) {
	q := `
	UPDATE dispatch
	SET status = ?, error_detail = ?, updated_at = ?
	WHERE message_id = ?
	  AND status = 'pending'
	`
	var tx *sqlx.Tx
	tx, err = s.getTX()
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
			return
		}
		_ = tx.Rollback()
	}()

	res, err := tx.Exec(q, status, errorDetail, time.Now().In(time.UTC), messageId)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		err = fmt.Errorf("could not transition dispatch %s to '%s', %d rows affected", messageId, status, affected)
		return err
	}

	err = s.addDispatchLogEntryTx(tx, messageId, fmt.Sprintf("record moved from 'pending' to '%s'", status))
	return err
}

func (s *sqlite) GetDispatchHistory(limit int) (records []DispatchRecord, err error) {
	q := `
	SELECT message_id, template_id, recipient, rendered_subject, source_event_ref, status, error_detail, created_at, updated_at
	FROM dispatch
	ORDER BY created_at DESC, message_id DESC
	LIMIT ?
	`
	if limit <= 0 {
		limit = 100
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	err = db.Select(&records, q, limit)
	return records, err
}

func (s *sqlite) AddDispatchLogEntry(messageId, log string) error {
	tx, err := s.getTX()
	if err != nil {
		return err
	}
	err = s.addDispatchLogEntryTx(tx, messageId, log)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqlite) addDispatchLogEntryTx(tx *sqlx.Tx, messageId, log string) error {
	q := `
	INSERT INTO dispatch_log (message_id, created_at, log)
	VALUES (?, ?, ?)
	`
	_, err := tx.Exec(q, messageId, time.Now().In(time.UTC), log)
	if err != nil {
		return fmt.Errorf("failed to insert log entry, %v", err)
	}
	return err
}

func (s *sqlite) GetDispatchLog(messageId string) (entries []DispatchLogEntry, err error) {
	q := `SELECT message_id, created_at, log FROM dispatch_log WHERE message_id = ? ORDER BY created_at`
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	err = db.Select(&entries, q, messageId)
	return entries, err
}

func (s *sqlite) tuneDatabase() error {
	q := `pragma journal_mode = WAL;
			pragma synchronous = normal;
			pragma temp_store = memory;`

	if s.db == nil {
		return errors.New("db must be instantiated")
	}
	_, err := s.db.Exec(q)
	return err
}

func (s *sqlite) getDB() (*sqlx.DB, error) {

	var err error
	for s.db == nil || s.db.Ping() != nil {

		if s.db != nil {
			_ = s.db.Close()
			s.db = nil
		}

		s.db, err = sqlx.Connect("sqlite3", s.path)
		if err != nil {
			return nil, fmt.Errorf("error while connecting, %w", err)
		}
		err = s.tuneDatabase()
		if err != nil {
			return nil, fmt.Errorf("error while tuning db instance, %w", err)
		}
	}

	return s.db, nil
}

func (s *sqlite) getTX() (*sqlx.Tx, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	return db.Beginx()
}

func (s *sqlite) ensureSchema() error {

	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("could not get db, %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS mail_config (
	    id INTEGER PRIMARY KEY CHECK (id = 1),
	    provider TEXT NOT NULL DEFAULT 'smtp',
	    host TEXT NOT NULL DEFAULT '',
	    port INT NOT NULL DEFAULT 587,
	    user_ TEXT NOT NULL DEFAULT '',
	    secret TEXT NOT NULL DEFAULT '',
	    from_address TEXT NOT NULL DEFAULT '',
	    from_name TEXT NOT NULL DEFAULT '',
	    enabled BOOLEAN NOT NULL DEFAULT FALSE,
	    simulate BOOLEAN NOT NULL DEFAULT TRUE,
	    updated_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	);

	CREATE TABLE IF NOT EXISTS dispatch (
	    message_id TEXT PRIMARY KEY,
	    template_id TEXT NOT NULL,
	    recipient TEXT NOT NULL,
	    rendered_subject TEXT NOT NULL,
	    source_event_ref TEXT NOT NULL DEFAULT '',

	    status TEXT NOT NULL, -- pending, sent, failed
	    error_detail TEXT NOT NULL DEFAULT '',

	    created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
	    updated_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_dispatch_created_at ON dispatch(created_at);

	CREATE TABLE IF NOT EXISTS dispatch_log (
	    message_id TEXT NOT NULL,
	    created_at DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
	    log TEXT NOT NULL,
	    PRIMARY KEY (message_id, created_at)
	);
`)
	if err != nil {
		return fmt.Errorf("could not upsert schema, %w", err)
	}

	return err
}
