package dto

type VerificationRequest struct {
	IsVerified *bool `json:"is_verified" validate:"required"`
}

type PublicationResponse struct {
	SchoolID           string `json:"school_id"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status"`
	IsVerified         bool   `json:"is_verified"`
	Publishable        bool   `json:"publishable"`
	Reason             string `json:"reason"`
	SchoolStatus       string `json:"school_status"`
	Changed            bool   `json:"changed"`
}
