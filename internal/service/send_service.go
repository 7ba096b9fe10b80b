package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"wagate/internal/constants"
	"wagate/internal/errors"
	"wagate/internal/metrics"
	"wagate/internal/models"
	"wagate/internal/privacy"
	"wagate/pkg/meta"

	"github.com/sirupsen/logrus"
)

// Authorizer is the external auth collaborator: callers must own the phone
// they send through, or hold an elevated role. Token issuance and role
// lookup live outside this service.
type Authorizer interface {
	Authorize(ctx context.Context, userID string, phone *models.PhoneNumber) error
}

// TokenVault decrypts stored provider credentials. Plaintext tokens exist
// only inside the send path, immediately before the provider call.
type TokenVault interface {
	Decrypt(blob string) (string, error)
}

// SendDatabase is the persistence surface of outbound dispatch.
type SendDatabase interface {
	GetPhone(ctx context.Context, id string) (*models.PhoneNumber, error)
	CreateMessage(ctx context.Context, msg *models.MessageRecord) (int64, error)
	IncrementPhoneSendCounters(ctx context.Context, id string) error
	ResetPhoneDailyWindow(ctx context.Context, id string, resetAt time.Time) error
	CreateErrorRecord(ctx context.Context, rec *models.ErrorRecord) error
}

// SendRequest is the internal send contract consumed by dashboard/agent
// callers.
type SendRequest struct {
	PhoneID        string `json:"phoneId"`
	UserID         string `json:"-"`
	RecipientPhone string `json:"recipientPhone"`
	MessageType    string `json:"messageType"`
	Content        string `json:"content"`
	TemplateName   string `json:"templateName,omitempty"`
}

type SendResult struct {
	MessageID         int64  `json:"messageId"`
	ProviderMessageID string `json:"providerMessageId"`
}

// SendService dispatches outbound messages through the provider API.
type SendService struct {
	db             SendDatabase
	vault          TokenVault
	client         meta.Client
	authz          Authorizer
	logger         *logrus.Logger
	templateLocale string
}

func NewSendService(db SendDatabase, vault TokenVault, client meta.Client, authz Authorizer, logger *logrus.Logger) *SendService {
	return &SendService{
		db:             db,
		vault:          vault,
		client:         client,
		authz:          authz,
		logger:         logger,
		templateLocale: constants.DefaultTemplateLocale,
	}
}

// Send runs the full outbound path: credential lookup, authorization, daily
// limit, token decrypt, provider call, and bookkeeping. Per call it produces
// exactly one of an ErrorRecord (provider failure) or a MessageRecord plus
// counter increments (provider success) — never both.
func (s *SendService) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.RecipientPhone == "" || req.MessageType == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "recipientPhone and messageType are required")
	}
	if req.Content == "" && req.TemplateName == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "content or templateName is required")
	}

	phone, err := s.db.GetPhone(ctx, req.PhoneID)
	if err != nil {
		return nil, errors.NewDatabaseError("phone lookup", err)
	}
	if phone == nil {
		return nil, errors.NewNotFoundError("phone", req.PhoneID)
	}

	if err := s.authz.Authorize(ctx, req.UserID, phone); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "caller may not send through this phone")
	}

	now := time.Now().UTC()
	if phone.DailyLimit > 0 && now.After(phone.LimitResetAt) {
		resetAt := now.Add(24 * time.Hour)
		if err := s.db.ResetPhoneDailyWindow(ctx, phone.ID, resetAt); err != nil {
			return nil, errors.NewDatabaseError("daily window reset", err)
		}
		phone.DailyUsed = 0
		phone.LimitResetAt = resetAt
	}
	if phone.LimitExceeded(now) {
		metrics.SendTotal.WithLabelValues("limit_exceeded").Inc()
		return nil, errors.NewRateLimitError(phone.DailyLimit)
	}

	token, err := s.vault.Decrypt(phone.AccessTokenEnc)
	if err != nil {
		// Almost always a key-rotation mismatch, not a caller bug, but the
		// caller is the one who can escalate it.
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to decrypt access token")
	}

	payload := meta.BuildPayload(req.RecipientPhone, req.MessageType, req.Content, req.TemplateName, s.templateLocale)

	start := time.Now()
	resp, err := s.client.SendMessage(ctx, phone.PhoneNumberID, token, payload)
	metrics.SendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.recordSendFailure(ctx, phone, req, err)
	}

	providerMsgID := resp.MessageID()

	content, _ := json.Marshal(struct {
		Text         string `json:"text,omitempty"`
		TemplateName string `json:"template_name,omitempty"`
	}{Text: req.Content, TemplateName: req.TemplateName})

	message := &models.MessageRecord{
		WabaID:        phone.WabaID,
		PhoneNumberID: phone.PhoneNumberID,
		UserID:        req.UserID,
		ProviderMsgID: providerMsgID,
		Direction:     models.DirectionOutbound,
		Type:          outboundType(req.MessageType),
		Content:       content,
		Status:        models.MessageStatusSent,
		Timestamp:     now,
		Cost: &models.MessageCost{
			Currency:        constants.DefaultMessageCurrency,
			PricePerMessage: constants.DefaultMessageCostUSD,
			TotalCost:       constants.DefaultMessageCostUSD,
			BillingCategory: "STANDARD",
		},
	}
	if req.TemplateName != "" {
		message.TemplateName = &req.TemplateName
	}

	id, err := s.db.CreateMessage(ctx, message)
	if err != nil {
		// The provider has already accepted the message; local state now
		// lags reality until a reconciliation sweep picks it up.
		metrics.SendTotal.WithLabelValues("error").Inc()
		s.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldPhoneID:   phone.PhoneNumberID,
			LogFieldMessageID: privacy.MaskMessageID(providerMsgID),
		}).Error("Provider accepted message but local record write failed")
		return nil, errors.NewDatabaseError("outbound message write", err)
	}

	if err := s.db.IncrementPhoneSendCounters(ctx, phone.ID); err != nil {
		s.logger.WithError(err).WithField(LogFieldPhoneID, phone.PhoneNumberID).Error("Failed to increment send counters")
	}

	metrics.SendTotal.WithLabelValues("sent").Inc()
	s.logger.WithFields(logrus.Fields{
		LogFieldPhoneID:     phone.PhoneNumberID,
		LogFieldMessageID:   privacy.MaskMessageID(providerMsgID),
		LogFieldMessageType: req.MessageType,
		"recipient":         privacy.MaskPhoneNumber(req.RecipientPhone),
	}).Info("Outbound message sent")

	return &SendResult{MessageID: id, ProviderMessageID: providerMsgID}, nil
}

// recordSendFailure persists the provider failure as an ErrorRecord and maps
// it to the caller-facing error. Timeouts are treated the same as provider
// rejections.
func (s *SendService) recordSendFailure(ctx context.Context, phone *models.PhoneNumber, req *SendRequest, sendErr error) error {
	statusCode := 0
	errorCode := string(errors.ErrCodeExternalAPI)
	var apiErr *meta.APIError
	if stderrors.As(sendErr, &apiErr) {
		statusCode = apiErr.StatusCode
		if apiErr.Code != 0 {
			// The record keeps the provider's own error code; the app-level
			// code only shapes the caller-facing error.
			errorCode = strconv.Itoa(apiErr.Code)
		}
	}

	record := &models.ErrorRecord{
		PhoneNumberID: phone.PhoneNumberID,
		ErrorCode:     errorCode,
		ErrorMessage:  sendErr.Error(),
		Operation:     models.OperationSendMessage,
		Recipient:     req.RecipientPhone,
		MessageType:   req.MessageType,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.db.CreateErrorRecord(ctx, record); err != nil {
		s.logger.WithError(err).WithField(LogFieldPhoneID, phone.PhoneNumberID).Error("Failed to persist send error record")
	}

	metrics.SendTotal.WithLabelValues("provider_error").Inc()
	s.logger.WithError(sendErr).WithFields(logrus.Fields{
		LogFieldPhoneID:     phone.PhoneNumberID,
		LogFieldStatusCode:  statusCode,
		LogFieldMessageType: req.MessageType,
	}).Error("Provider send failed")

	return errors.NewProviderError("messages", statusCode, sendErr)
}

func outboundType(messageType string) models.MessageType {
	switch messageType {
	case "template":
		return models.MessageTypeTemplate
	case "text":
		return models.MessageTypeText
	default:
		// Unsupported types go out as text via the payload fallback.
		return models.MessageTypeText
	}
}
