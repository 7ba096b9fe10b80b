package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"wagate/internal/models"
	"wagate/pkg/meta"

	"github.com/sirupsen/logrus"
)

// fakeDB is an in-memory WebhookDatabase and SendDatabase. Error injection
// fields force failures on individual operations.
type fakeDB struct {
	mu sync.Mutex

	nextWebhookID int64
	nextMessageID int64

	webhooks  map[int64]*models.WebhookRecord
	messages  map[string]*models.MessageRecord
	applied   map[string]int64
	contacts  map[string]*models.Contact
	phones    map[string]*models.PhoneNumber
	templates map[string]*models.Template

	errorRecords []*models.ErrorRecord

	receivedCounts  map[string]int
	contactMessages map[string]int
	sendCounters    map[string]int
	windowResets    map[string]time.Time

	createWebhookErr error
	createMessageErr error
	advanceStatusErr error
	// applyInboundErr fails the next atomic apply and then clears,
	// mimicking a transient error whose partial work was rolled back.
	applyInboundErr error
	claimResults    map[int64]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		webhooks:        make(map[int64]*models.WebhookRecord),
		messages:        make(map[string]*models.MessageRecord),
		applied:         make(map[string]int64),
		contacts:        make(map[string]*models.Contact),
		phones:          make(map[string]*models.PhoneNumber),
		templates:       make(map[string]*models.Template),
		receivedCounts:  make(map[string]int),
		contactMessages: make(map[string]int),
		sendCounters:    make(map[string]int),
		windowResets:    make(map[string]time.Time),
		claimResults:    make(map[int64]bool),
	}
}

func (f *fakeDB) CreateWebhookEvent(ctx context.Context, record *models.WebhookRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createWebhookErr != nil {
		return 0, f.createWebhookErr
	}
	f.nextWebhookID++
	stored := *record
	stored.ID = f.nextWebhookID
	f.webhooks[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeDB) GetWebhookEvent(ctx context.Context, id int64) (*models.WebhookRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.webhooks[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (f *fakeDB) MarkWebhookProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook %d not found", id)
	}
	record.Processed = true
	record.ProcessedAt = &processedAt
	record.NextRetryAt = nil
	return nil
}

func (f *fakeDB) UpdateWebhookRetryState(ctx context.Context, id int64, retryCount int, nextRetryAt *time.Time, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook %d not found", id)
	}
	record.RetryCount = retryCount
	record.NextRetryAt = nextRetryAt
	record.ProcessingError = &processingError
	return nil
}

func (f *fakeDB) GetDueWebhookEvents(ctx context.Context, now time.Time, limit int) ([]*models.WebhookRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*models.WebhookRecord
	for _, record := range f.webhooks {
		if record.Processed || record.RetryExhausted() || record.NextRetryAt == nil {
			continue
		}
		if record.NextRetryAt.After(now) {
			continue
		}
		copied := *record
		due = append(due, &copied)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (f *fakeDB) ClaimWebhookEvent(ctx context.Context, id int64, observedRetryCount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if result, ok := f.claimResults[id]; ok {
		return result, nil
	}
	record, ok := f.webhooks[id]
	if !ok || record.Processed || record.NextRetryAt == nil || record.RetryCount != observedRetryCount {
		return false, nil
	}
	record.NextRetryAt = nil
	return true, nil
}

func (f *fakeDB) PruneProcessedWebhookEvents(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func (f *fakeDB) CreateMessage(ctx context.Context, msg *models.MessageRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createMessageErr != nil {
		return 0, f.createMessageErr
	}
	if _, exists := f.messages[msg.ProviderMsgID]; exists {
		return 0, fmt.Errorf("UNIQUE constraint failed: messages.provider_msg_id")
	}
	f.nextMessageID++
	stored := *msg
	stored.ID = f.nextMessageID
	f.messages[stored.ProviderMsgID] = &stored
	return stored.ID, nil
}

func (f *fakeDB) GetMessageByProviderID(ctx context.Context, providerMsgID string) (*models.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[providerMsgID]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeDB) AdvanceMessageStatus(ctx context.Context, providerMsgID string, to models.MessageStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advanceStatusErr != nil {
		return false, f.advanceStatusErr
	}
	msg, ok := f.messages[providerMsgID]
	if !ok || !models.CanTransition(msg.Status, to) {
		return false, nil
	}
	msg.Status = to
	return true, nil
}

// ApplyInboundMessage mirrors the store's all-or-nothing apply: an injected
// failure leaves no side effects behind, and an already-claimed key is a
// no-op.
func (f *fakeDB) ApplyInboundMessage(ctx context.Context, eventKey string, webhookID int64, msg *models.MessageRecord, senderPhone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyInboundErr != nil {
		err := f.applyInboundErr
		f.applyInboundErr = nil
		return false, err
	}
	if _, ok := f.applied[eventKey]; ok {
		return false, nil
	}
	if _, exists := f.messages[msg.ProviderMsgID]; !exists {
		f.nextMessageID++
		stored := *msg
		stored.ID = f.nextMessageID
		f.messages[stored.ProviderMsgID] = &stored
	}
	if msg.PhoneNumberID != "" {
		f.receivedCounts[msg.PhoneNumberID]++
	}
	if contact, ok := f.contacts[senderPhone]; ok {
		f.contactMessages[contact.ID]++
	}
	f.applied[eventKey] = webhookID
	return true, nil
}

func (f *fakeDB) wasApplied(eventKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.applied[eventKey]
	return ok
}

func (f *fakeDB) UpdatePhoneQuality(ctx context.Context, phoneNumberID string, rating models.QualityRating) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, phone := range f.phones {
		if phone.PhoneNumberID == phoneNumberID {
			phone.QualityRating = rating
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDB) UpdateTemplateStatusByProviderID(ctx context.Context, providerTplID string, status models.TemplateStatus, rejectionReason *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[providerTplID]
	if !ok {
		return false, nil
	}
	tpl.Status = status
	tpl.RejectionReason = rejectionReason
	return true, nil
}

func (f *fakeDB) CreateErrorRecord(ctx context.Context, rec *models.ErrorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *rec
	f.errorRecords = append(f.errorRecords, &stored)
	return nil
}

func (f *fakeDB) GetPhone(ctx context.Context, id string) (*models.PhoneNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	phone, ok := f.phones[id]
	if !ok {
		return nil, nil
	}
	copied := *phone
	return &copied, nil
}

func (f *fakeDB) IncrementPhoneSendCounters(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCounters[id]++
	if phone, ok := f.phones[id]; ok {
		phone.DailyUsed++
		phone.TotalMessagesSent++
	}
	return nil
}

func (f *fakeDB) ResetPhoneDailyWindow(ctx context.Context, id string, resetAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowResets[id] = resetAt
	if phone, ok := f.phones[id]; ok {
		phone.DailyUsed = 0
		phone.LimitResetAt = resetAt
	}
	return nil
}

// fakeAuthorizer approves or rejects every caller.
type fakeAuthorizer struct {
	err error
}

func (a *fakeAuthorizer) Authorize(ctx context.Context, userID string, phone *models.PhoneNumber) error {
	return a.err
}

// fakeVault returns a canned token.
type fakeVault struct {
	token string
	err   error
}

func (v *fakeVault) Decrypt(blob string) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	return v.token, nil
}

// fakeMetaClient captures the last request and answers with canned values.
type fakeMetaClient struct {
	mu sync.Mutex

	resp *meta.SendMessageResponse
	err  error

	calls       int
	lastPhoneID string
	lastToken   string
	lastRequest *meta.SendMessageRequest
}

func (c *fakeMetaClient) SendMessage(ctx context.Context, phoneNumberID, accessToken string, req *meta.SendMessageRequest) (*meta.SendMessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.lastPhoneID = phoneNumberID
	c.lastToken = accessToken
	c.lastRequest = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func metaResponse(messageID string) *meta.SendMessageResponse {
	resp := &meta.SendMessageResponse{MessagingProduct: "whatsapp"}
	resp.Messages = append(resp.Messages, struct {
		ID string `json:"id"`
	}{ID: messageID})
	return resp
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
