package models

import "time"

// ApprovalRecord is the admin review state of a job provider's profile.
// Message may carry a JSON payload instead of human text.
type ApprovalRecord struct {
	UserID    string    `json:"userId"`
	Approved  bool      `json:"approved"`
	Rejected  bool      `json:"rejected"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Job struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Approved     bool      `json:"approved"`
	Title        string    `json:"title"`
	MinSalary    int       `json:"minSalary"`
	MaxSalary    int       `json:"maxSalary"`
	JobType      string    `json:"jobType"`
	CoreSubjects []string  `json:"coreSubjects"`
	Country      string    `json:"country"`
	State        string    `json:"state"`
	City         string    `json:"city"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ChangedAt is the posting's last approval or update stamp.
func (j Job) ChangedAt() time.Time {
	if j.UpdatedAt.IsZero() {
		return j.CreatedAt
	}
	return j.UpdatedAt
}

type Candidate struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type CandidateApproval struct {
	CandidateUID string `json:"candidateUid"`
	Approved     bool   `json:"approved"`
}

type Application struct {
	JobID        string `json:"jobId"`
	CandidateUID string `json:"candidateUid"`
}

type Preference struct {
	CandidateUID     string   `json:"candidateUid"`
	FullTimeOnline   bool     `json:"fullTimeOnline"`
	FullTimeOffline  bool     `json:"fullTimeOffline"`
	SalaryBand       string   `json:"salaryBand"`
	TeachingSubjects []string `json:"teachingSubjects"`
	TeachingGrades   []string `json:"teachingGrades"`
	Country          string   `json:"country"`
	State            string   `json:"state"`
	City             string   `json:"city"`
}

type Address struct {
	CandidateUID string `json:"candidateUid"`
	Country      string `json:"country"`
	State        string `json:"state"`
	City         string `json:"city"`
}

// LedgerEntry is the audit row written for every credit deduction.
type LedgerEntry struct {
	ID             string    `json:"id"`
	EventID        string    `json:"eventId"`
	PayerID        string    `json:"payerId"`
	OrganizationID string    `json:"organizationId"`
	CandidateUID   string    `json:"candidateUid"`
	Amount         int       `json:"amount"`
	BalanceAfter   int       `json:"balanceAfter"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
}
