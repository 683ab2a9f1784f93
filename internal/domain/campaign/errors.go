package campaign

import "errors"

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotOwner         = errors.New("campaign belongs to another advertiser")
	ErrInvalidStatus    = errors.New("invalid campaign status")
	ErrInternal         = errors.New("internal error")
)
