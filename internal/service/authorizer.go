package service

import (
	"context"
	"fmt"

	"wagate/internal/models"
)

// OwnerAuthorizer is the in-process stand-in for the external auth
// collaborator: the caller must own the phone, or appear in the elevated
// set (superadmin/admin identities resolved by the outer auth system).
type OwnerAuthorizer struct {
	elevated map[string]bool
}

func NewOwnerAuthorizer(elevatedUserIDs []string) *OwnerAuthorizer {
	elevated := make(map[string]bool, len(elevatedUserIDs))
	for _, id := range elevatedUserIDs {
		elevated[id] = true
	}
	return &OwnerAuthorizer{elevated: elevated}
}

func (a *OwnerAuthorizer) Authorize(ctx context.Context, userID string, phone *models.PhoneNumber) error {
	if userID == "" {
		return fmt.Errorf("caller identity is required")
	}
	if userID == phone.UserID || a.elevated[userID] {
		return nil
	}
	return fmt.Errorf("user %s does not own phone %s", userID, phone.ID)
}
