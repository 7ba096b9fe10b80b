package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"wagate/internal/models"
)

func (d *Database) CreateMessage(ctx context.Context, msg *models.MessageRecord) (int64, error) {
	var costCurrency, costBilling *string
	var costUnit, costTotal *float64
	if msg.Cost != nil {
		costCurrency = &msg.Cost.Currency
		costUnit = &msg.Cost.PricePerMessage
		costTotal = &msg.Cost.TotalCost
		costBilling = &msg.Cost.BillingCategory
	}

	var result sql.Result
	err := retryableDBOperation(ctx, func() error {
		var execErr error
		result, execErr = d.db.ExecContext(ctx, InsertMessageQuery,
			msg.WabaID,
			msg.PhoneNumberID,
			msg.UserID,
			msg.ContactID,
			msg.ProviderMsgID,
			string(msg.Direction),
			string(msg.Type),
			string(msg.Content),
			string(msg.Status),
			msg.FailureReason,
			msg.TemplateName,
			costCurrency,
			costUnit,
			costTotal,
			costBilling,
			msg.Timestamp,
		)
		return execErr
	}, "create message")
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get message id: %w", err)
	}
	return id, nil
}

func (d *Database) GetMessageByProviderID(ctx context.Context, providerMsgID string) (*models.MessageRecord, error) {
	msg := &models.MessageRecord{}
	var direction, msgType, status, content string
	var costCurrency, costBilling *string
	var costUnit, costTotal *float64

	err := d.db.QueryRowContext(ctx, SelectMessageByProviderIDQuery, providerMsgID).Scan(
		&msg.ID,
		&msg.WabaID,
		&msg.PhoneNumberID,
		&msg.UserID,
		&msg.ContactID,
		&msg.ProviderMsgID,
		&direction,
		&msgType,
		&content,
		&status,
		&msg.FailureReason,
		&msg.TemplateName,
		&costCurrency,
		&costUnit,
		&costTotal,
		&costBilling,
		&msg.Timestamp,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	msg.Direction = models.MessageDirection(direction)
	msg.Type = models.MessageType(msgType)
	msg.Status = models.MessageStatus(status)
	msg.Content = []byte(content)
	if costCurrency != nil && costUnit != nil && costTotal != nil {
		msg.Cost = &models.MessageCost{
			Currency:        *costCurrency,
			PricePerMessage: *costUnit,
			TotalCost:       *costTotal,
		}
		if costBilling != nil {
			msg.Cost.BillingCategory = *costBilling
		}
	}
	return msg, nil
}

// AdvanceMessageStatus applies a provider status callback. The UPDATE is
// conditioned on the current status ranking strictly below the new one, so a
// replayed or out-of-order callback cannot regress the record. Returns true
// when a row was updated.
func (d *Database) AdvanceMessageStatus(ctx context.Context, providerMsgID string, to models.MessageStatus) (bool, error) {
	earlier := models.EarlierStatuses(to)
	if len(earlier) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(earlier))
	args := []interface{}{string(to), providerMsgID}
	for i, s := range earlier {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	query := AdvanceMessageStatusQueryPrefix + " (" + strings.Join(placeholders, ", ") + ")"

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to advance message status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// ApplyInboundMessage applies one inbound webhook entry in a single
// transaction: the idempotency claim, the message insert, the phone received
// counter and the contact bookkeeping commit together or not at all, so a
// retry after a mid-entry failure cannot double-count statistics. Returns
// false without side effects when the entry was already applied by an
// earlier attempt.
func (d *Database) ApplyInboundMessage(ctx context.Context, eventKey string, webhookID int64, msg *models.MessageRecord, senderPhone string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	claim, err := tx.ExecContext(ctx, InsertAppliedEventQuery, eventKey, webhookID)
	if err != nil {
		return false, fmt.Errorf("failed to claim applied event: %w", err)
	}
	rows, err := claim.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, InsertMessageQuery,
		msg.WabaID,
		msg.PhoneNumberID,
		msg.UserID,
		msg.ContactID,
		msg.ProviderMsgID,
		string(msg.Direction),
		string(msg.Type),
		string(msg.Content),
		string(msg.Status),
		msg.FailureReason,
		msg.TemplateName,
		nil, nil, nil, nil,
		msg.Timestamp,
	); err != nil {
		// A different entry may already have inserted this provider message
		// id; the bookkeeping still applies.
		if !strings.Contains(err.Error(), "UNIQUE constraint") {
			return false, fmt.Errorf("failed to create inbound message: %w", err)
		}
	}

	if msg.PhoneNumberID != "" {
		if _, err := tx.ExecContext(ctx, IncrementPhoneReceivedQuery, msg.PhoneNumberID); err != nil {
			return false, fmt.Errorf("failed to increment received counter: %w", err)
		}
	}

	// Unknown senders are fine: the message is recorded either way.
	var contactID string
	err = tx.QueryRowContext(ctx, SelectContactIDByPhoneQuery, senderPhone).Scan(&contactID)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to look up contact: %w", err)
	}
	if err == nil {
		if _, err := tx.ExecContext(ctx, RecordContactMessageQuery, msg.Timestamp, string(models.DirectionInbound), contactID); err != nil {
			return false, fmt.Errorf("failed to record contact message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit inbound message: %w", err)
	}
	return true, nil
}
