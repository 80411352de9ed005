package models

import "time"

type AccountStatus string

const (
	AccountOnboarding AccountStatus = "onboarding"
	AccountPending    AccountStatus = "pending"
	AccountActive     AccountStatus = "active"
)

// PerformerAccount is the processor-linked subset of a performer profile.
type PerformerAccount struct {
	PerformerID      string        `json:"performer_id" gorm:"primaryKey;size:64"`
	Email            string        `json:"email"`
	ConnectAccountID *string       `json:"connect_account_id" gorm:"uniqueIndex"`
	ChargesEnabled   bool          `json:"charges_enabled" gorm:"default:false"`
	PayoutsEnabled   bool          `json:"payouts_enabled" gorm:"default:false"`
	DetailsSubmitted bool          `json:"details_submitted" gorm:"default:false"`
	AccountStatus    AccountStatus `json:"account_status" gorm:"default:onboarding"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// HasAccount reports whether a processor sub-account id is on file.
func (p *PerformerAccount) HasAccount() bool {
	return p != nil && p.ConnectAccountID != nil && *p.ConnectAccountID != ""
}

type ConnectAccountRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Country      string `json:"country" validate:"required,len=2,alpha"`
	BusinessType string `json:"business_type" validate:"omitempty,oneof=individual company"`
}

type OnboardingLinkRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=account_onboarding account_update"`
}

type ConnectAccountResponse struct {
	AccountID        string        `json:"account_id"`
	OnboardingURL    string        `json:"onboarding_url,omitempty"`
	DetailsSubmitted bool          `json:"details_submitted"`
	ChargesEnabled   bool          `json:"charges_enabled"`
	PayoutsEnabled   bool          `json:"payouts_enabled"`
	AccountStatus    AccountStatus `json:"account_status"`
}
