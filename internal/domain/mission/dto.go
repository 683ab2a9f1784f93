package mission

// JoinRequest is the body for claiming a mission slot
type JoinRequest struct {
	MissionDayID string `json:"missionDayId" validate:"required,uuid4"`
}

// SubmitEvidenceRequest is the body for submitting mission evidence
type SubmitEvidenceRequest struct {
	EvidenceURL  string `json:"evidenceUrl" validate:"required,url,max=2048"`
	EvidenceNote string `json:"evidenceNote" validate:"omitempty,max=2000"`
}

// ReviewRequest is the admin decision body
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,decision"`
	Reason   string `json:"reason" validate:"omitempty,max=500"`
}
