package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wagate/internal/models"
)

// SavePhone upserts a phone number record keyed by its local id.
func (d *Database) SavePhone(ctx context.Context, phone *models.PhoneNumber) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertPhoneQuery,
			phone.ID,
			phone.WabaID,
			phone.UserID,
			phone.PhoneNumber,
			phone.PhoneNumberID,
			phone.DisplayName,
			string(phone.QualityRating),
			phone.AccessTokenEnc,
			phone.DailyLimit,
			phone.DailyUsed,
			phone.LimitResetAt,
			phone.TotalMessagesSent,
			phone.TotalMessagesRecvd,
		)
		return err
	}, "save phone number")
}

func (d *Database) GetPhone(ctx context.Context, id string) (*models.PhoneNumber, error) {
	phone := &models.PhoneNumber{}
	var quality string
	err := d.db.QueryRowContext(ctx, SelectPhoneQuery, id).Scan(
		&phone.ID,
		&phone.WabaID,
		&phone.UserID,
		&phone.PhoneNumber,
		&phone.PhoneNumberID,
		&phone.DisplayName,
		&quality,
		&phone.AccessTokenEnc,
		&phone.DailyLimit,
		&phone.DailyUsed,
		&phone.LimitResetAt,
		&phone.TotalMessagesSent,
		&phone.TotalMessagesRecvd,
		&phone.CreatedAt,
		&phone.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get phone number: %w", err)
	}
	phone.QualityRating = models.QualityRating(quality)
	return phone, nil
}

// IncrementPhoneSendCounters bumps the lifetime and daily send counters after
// a successful provider send.
func (d *Database) IncrementPhoneSendCounters(ctx context.Context, id string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, IncrementPhoneSendCountersQuery, id)
		return err
	}, "increment phone send counters")
}

// ResetPhoneDailyWindow zeroes the daily usage counter and sets the next
// window boundary.
func (d *Database) ResetPhoneDailyWindow(ctx context.Context, id string, resetAt time.Time) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, ResetPhoneDailyWindowQuery, resetAt, id)
		return err
	}, "reset phone daily window")
}

// UpdatePhoneQuality applies a provider quality rating change. Returns true
// when a matching phone row was updated.
func (d *Database) UpdatePhoneQuality(ctx context.Context, phoneNumberID string, rating models.QualityRating) (bool, error) {
	result, err := d.db.ExecContext(ctx, UpdatePhoneQualityQuery, string(rating), phoneNumberID)
	if err != nil {
		return false, fmt.Errorf("failed to update phone quality: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (d *Database) SaveContact(ctx context.Context, contact *models.Contact) error {
	var direction *string
	if contact.LastMessageDirection != nil {
		s := string(*contact.LastMessageDirection)
		direction = &s
	}
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertOrReplaceContactQuery,
			contact.ID,
			contact.WabaID,
			contact.PhoneNumber,
			contact.DisplayName,
			contact.TotalMessages,
			contact.LastMessageAt,
			direction,
		)
		return err
	}, "save contact")
}

func (d *Database) GetContactByPhone(ctx context.Context, phoneNumber string) (*models.Contact, error) {
	contact := &models.Contact{}
	var direction *string
	err := d.db.QueryRowContext(ctx, SelectContactByPhoneQuery, phoneNumber).Scan(
		&contact.ID,
		&contact.WabaID,
		&contact.PhoneNumber,
		&contact.DisplayName,
		&contact.TotalMessages,
		&contact.LastMessageAt,
		&direction,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if direction != nil {
		dir := models.MessageDirection(*direction)
		contact.LastMessageDirection = &dir
	}
	return contact, nil
}

func (d *Database) SaveTemplate(ctx context.Context, tpl *models.Template) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertOrReplaceTemplateQuery,
			tpl.ID,
			tpl.WabaID,
			tpl.Name,
			tpl.Language,
			tpl.ProviderTplID,
			string(tpl.Status),
			tpl.RejectionReason,
		)
		return err
	}, "save template")
}

// UpdateTemplateStatusByProviderID applies a provider template review
// decision. Returns true when a matching template row was updated.
func (d *Database) UpdateTemplateStatusByProviderID(ctx context.Context, providerTplID string, status models.TemplateStatus, rejectionReason *string) (bool, error) {
	result, err := d.db.ExecContext(ctx, UpdateTemplateStatusQuery, string(status), rejectionReason, providerTplID)
	if err != nil {
		return false, fmt.Errorf("failed to update template status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (d *Database) CreateErrorRecord(ctx context.Context, rec *models.ErrorRecord) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, InsertErrorRecordQuery,
			rec.PhoneNumberID,
			rec.ErrorCode,
			rec.ErrorMessage,
			rec.Operation,
			rec.Recipient,
			rec.MessageType,
			rec.Timestamp,
		)
		return err
	}, "create error record")
}
