package experience

import "errors"

var (
	ErrCampaignNotFound = errors.New("experience campaign not found")
	ErrCampaignClosed   = errors.New("experience campaign is closed")
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamFull         = errors.New("team has no seats remaining")
	ErrTeamLimitReached = errors.New("campaign team limit reached")
	ErrAlreadyMember    = errors.New("already on a team in this campaign")
	ErrNotMember        = errors.New("not a member of this team")
	ErrInvalidStatus    = errors.New("team is not in a state that allows this")
	ErrInternal         = errors.New("internal error")
)
