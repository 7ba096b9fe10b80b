package database

// Webhook event queries
const (
	InsertWebhookEventQuery = `
		INSERT INTO webhook_events (
			waba_id, event_type, event_id, payload, processed,
			retry_count, max_retries, source_ip, signature, received_at
		) VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
	`

	SelectWebhookEventQuery = `
		SELECT id, waba_id, event_type, event_id, payload, processed,
			   processed_at, processing_error, retry_count, max_retries,
			   next_retry_at, source_ip, signature, received_at,
			   created_at, updated_at
		FROM webhook_events
		WHERE id = ?
	`

	MarkWebhookProcessedQuery = `
		UPDATE webhook_events
		SET processed = 1,
			processed_at = ?,
			processing_error = NULL,
			next_retry_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND processed = 0
	`

	UpdateWebhookRetryStateQuery = `
		UPDATE webhook_events
		SET retry_count = ?,
			next_retry_at = ?,
			processing_error = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND processed = 0
	`

	SelectDueWebhookEventsQuery = `
		SELECT id, waba_id, event_type, event_id, payload, processed,
			   processed_at, processing_error, retry_count, max_retries,
			   next_retry_at, source_ip, signature, received_at,
			   created_at, updated_at
		FROM webhook_events
		WHERE processed = 0
		  AND retry_count < max_retries
		  AND next_retry_at IS NOT NULL
		  AND next_retry_at <= ?
		ORDER BY next_retry_at ASC
		LIMIT ?
	`

	ClaimWebhookEventQuery = `
		UPDATE webhook_events
		SET next_retry_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND processed = 0
		  AND retry_count = ?
		  AND retry_count < max_retries
		  AND next_retry_at IS NOT NULL
	`

	PruneProcessedWebhookEventsQuery = `
		DELETE FROM webhook_events
		WHERE processed = 1
		  AND created_at < datetime('now', '-' || ? || ' days')
	`
)

// Message queries
const (
	InsertMessageQuery = `
		INSERT INTO messages (
			waba_id, phone_number_id, user_id, contact_id, provider_msg_id,
			direction, type, content, status, failure_reason, template_name,
			cost_currency, cost_unit_price, cost_total, cost_billing_category,
			timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectMessageByProviderIDQuery = `
		SELECT id, waba_id, phone_number_id, user_id, contact_id,
			   provider_msg_id, direction, type, content, status,
			   failure_reason, template_name,
			   cost_currency, cost_unit_price, cost_total, cost_billing_category,
			   timestamp, created_at, updated_at
		FROM messages
		WHERE provider_msg_id = ?
	`

	// Status writes are rank-guarded: the current status must appear in the
	// expanded IN list of statuses that rank below the new one.
	AdvanceMessageStatusQueryPrefix = `
		UPDATE messages
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE provider_msg_id = ?
		  AND status IN
	`

	InsertAppliedEventQuery = `
		INSERT OR IGNORE INTO applied_events (event_key, webhook_id)
		VALUES (?, ?)
	`

	SelectContactIDByPhoneQuery = `
		SELECT id FROM contacts WHERE phone_number = ?
	`
)

// Phone, contact, template and error record queries
const (
	InsertPhoneQuery = `
		INSERT OR REPLACE INTO phone_numbers (
			id, waba_id, user_id, phone_number, phone_number_id, display_name,
			quality_rating, access_token_enc, daily_limit, daily_used,
			limit_reset_at, total_sent, total_received
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectPhoneQuery = `
		SELECT id, waba_id, user_id, phone_number, phone_number_id,
			   display_name, quality_rating, access_token_enc,
			   daily_limit, daily_used, limit_reset_at,
			   total_sent, total_received, created_at, updated_at
		FROM phone_numbers
		WHERE id = ?
	`

	IncrementPhoneSendCountersQuery = `
		UPDATE phone_numbers
		SET total_sent = total_sent + 1,
			daily_used = daily_used + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	ResetPhoneDailyWindowQuery = `
		UPDATE phone_numbers
		SET daily_used = 0,
			limit_reset_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	IncrementPhoneReceivedQuery = `
		UPDATE phone_numbers
		SET total_received = total_received + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE phone_number_id = ?
	`

	UpdatePhoneQualityQuery = `
		UPDATE phone_numbers
		SET quality_rating = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE phone_number_id = ?
	`

	InsertOrReplaceContactQuery = `
		INSERT OR REPLACE INTO contacts (
			id, waba_id, phone_number, display_name, total_messages,
			last_message_at, last_message_direction
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	SelectContactByPhoneQuery = `
		SELECT id, waba_id, phone_number, display_name, total_messages,
			   last_message_at, last_message_direction, created_at, updated_at
		FROM contacts
		WHERE phone_number = ?
	`

	RecordContactMessageQuery = `
		UPDATE contacts
		SET total_messages = total_messages + 1,
			last_message_at = ?,
			last_message_direction = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	InsertOrReplaceTemplateQuery = `
		INSERT OR REPLACE INTO templates (
			id, waba_id, name, language, provider_tpl_id, status, rejection_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	UpdateTemplateStatusQuery = `
		UPDATE templates
		SET status = ?,
			rejection_reason = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE provider_tpl_id = ?
	`

	InsertErrorRecordQuery = `
		INSERT INTO error_records (
			phone_number_id, error_code, error_message, operation,
			recipient, message_type, resolved, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
)
