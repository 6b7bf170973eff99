package services

import "errors"

// Business-rule failures. None of these are retryable; each reflects a definite state
// the caller has to act on.
var (
	ErrAlreadyClaimed   = errors.New("grant already claimed")
	ErrCampaignExpired  = errors.New("campaign claim deadline has passed")
	ErrCampaignInactive = errors.New("campaign is not accepting claims")
	ErrCampaignNotOpen  = errors.New("campaign is closed to new grants")
	ErrNotExpirable     = errors.New("grant cannot be expired before the claim deadline")
	ErrInvalidAmount    = errors.New("invalid grant amount")
	ErrPoolExhausted    = errors.New("campaign pool exhausted")
	ErrInvalidCampaign  = errors.New("invalid campaign")
	ErrInvalidGrant     = errors.New("invalid grant request")
)
