package models

import "time"

type QualityRating string

const (
	QualityGreen  QualityRating = "GREEN"
	QualityYellow QualityRating = "YELLOW"
	QualityRed    QualityRating = "RED"
)

// PhoneNumber is the credential holder for one provider phone number. The
// access token is stored encrypted and only ever decrypted inside the send
// path, immediately before the provider call.
type PhoneNumber struct {
	ID                 string        `db:"id"`
	WabaID             string        `db:"waba_id"`
	UserID             string        `db:"user_id"`
	PhoneNumber        string        `db:"phone_number"`
	PhoneNumberID      string        `db:"phone_number_id"`
	DisplayName        string        `db:"display_name"`
	QualityRating      QualityRating `db:"quality_rating"`
	AccessTokenEnc     string        `db:"access_token_enc"`
	DailyLimit         int64         `db:"daily_limit"`
	DailyUsed          int64         `db:"daily_used"`
	LimitResetAt       time.Time     `db:"limit_reset_at"`
	TotalMessagesSent  int64         `db:"total_sent"`
	TotalMessagesRecvd int64         `db:"total_received"`
	CreatedAt          time.Time     `db:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"`
}

// LimitExceeded reports whether the daily messaging window is spent. A zero
// limit means the phone is unmetered.
func (p *PhoneNumber) LimitExceeded(now time.Time) bool {
	if p.DailyLimit <= 0 {
		return false
	}
	if now.After(p.LimitResetAt) {
		return false
	}
	return p.DailyUsed >= p.DailyLimit
}
