package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"wagate/internal/migrations"
	"wagate/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Webhook event operations

func (d *Database) CreateWebhookEvent(ctx context.Context, record *models.WebhookRecord) (int64, error) {
	var result sql.Result
	err := retryableDBOperation(ctx, func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, InsertWebhookEventQuery,
			record.WabaID,
			string(record.EventType),
			record.EventID,
			string(record.Payload),
			record.RetryCount,
			record.MaxRetries,
			record.SourceIP,
			record.Signature,
			record.ReceivedAt,
		)
		return execErr
	}, "create webhook event")
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get webhook event id: %w", err)
	}
	return id, nil
}

func (d *Database) GetWebhookEvent(ctx context.Context, id int64) (*models.WebhookRecord, error) {
	row := d.db.QueryRowContext(ctx, SelectWebhookEventQuery, id)
	record, err := scanWebhookEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return record, nil
}

// MarkWebhookProcessed transitions a record to its processed terminal state,
// clearing any pending retry bookkeeping.
func (d *Database) MarkWebhookProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	_, err := d.db.ExecContext(ctx, MarkWebhookProcessedQuery, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

// UpdateWebhookRetryState persists the retry scheduler's bookkeeping. A nil
// nextRetryAt records terminal exhaustion: the record stays unprocessed and
// the sweep will never pick it up again.
func (d *Database) UpdateWebhookRetryState(ctx context.Context, id int64, retryCount int, nextRetryAt *time.Time, processingError string) error {
	_, err := d.db.ExecContext(ctx, UpdateWebhookRetryStateQuery,
		retryCount, nextRetryAt, processingError, id)
	if err != nil {
		return fmt.Errorf("failed to update webhook retry state: %w", err)
	}
	return nil
}

// GetDueWebhookEvents returns unprocessed, unexhausted records whose retry
// time has arrived.
func (d *Database) GetDueWebhookEvents(ctx context.Context, now time.Time, limit int) ([]*models.WebhookRecord, error) {
	rows, err := d.db.QueryContext(ctx, SelectDueWebhookEventsQuery, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due webhook events: %w", err)
	}
	defer rows.Close()

	var records []*models.WebhookRecord
	for rows.Next() {
		record, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook events: %w", err)
	}
	return records, nil
}

// ClaimWebhookEvent takes a retry lease on a due record by clearing its
// next_retry_at, conditioned on the retry count the caller observed. A false
// return means another invocation got there first.
func (d *Database) ClaimWebhookEvent(ctx context.Context, id int64, observedRetryCount int) (bool, error) {
	result, err := d.db.ExecContext(ctx, ClaimWebhookEventQuery, id, observedRetryCount)
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (d *Database) PruneProcessedWebhookEvents(ctx context.Context, retentionDays int) (int64, error) {
	result, err := d.db.ExecContext(ctx, PruneProcessedWebhookEventsQuery, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook events: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhookEvent(row rowScanner) (*models.WebhookRecord, error) {
	record := &models.WebhookRecord{}
	var eventType string
	var payload string

	err := row.Scan(
		&record.ID,
		&record.WabaID,
		&eventType,
		&record.EventID,
		&payload,
		&record.Processed,
		&record.ProcessedAt,
		&record.ProcessingError,
		&record.RetryCount,
		&record.MaxRetries,
		&record.NextRetryAt,
		&record.SourceIP,
		&record.Signature,
		&record.ReceivedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.EventType = models.WebhookEventType(eventType)
	record.Payload = []byte(payload)
	return record, nil
}
