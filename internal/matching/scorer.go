// Package matching decides whether a candidate is a good fit for a job
// posting. Each satisfied criterion adds one point.
package matching

import (
	"strings"

	"notification-engine/internal/models"
)

// MatchThreshold is the minimum score for a candidate to count as a match.
const MatchThreshold = 2

const (
	CriterionJobType      = "job_type"
	CriterionSalaryBand   = "salary_band"
	CriterionSubject      = "subject"
	CriterionCountry      = "country"
	CriterionState        = "state"
	CriterionCity         = "city"
	CriterionGrade        = "grade"
	CriterionAddressState = "address_state"
	CriterionAddressCity  = "address_city"
)

type salaryBand struct {
	min, max int
	openEnd  bool
}

var salaryBands = map[string]salaryBand{
	"20k_40k":  {min: 20000, max: 40000},
	"40k_60k":  {min: 40000, max: 60000},
	"60k_80k":  {min: 60000, max: 80000},
	"80k_plus": {min: 80000, openEnd: true},
	"80k+":     {min: 80000, openEnd: true},
}

var (
	onlineMarkers  = []string{"online", "remote", "work from home", "wfh"}
	offlineMarkers = []string{"offline", "full time", "part time"}
)

type Scorer struct {
	threshold int
}

func NewScorer(threshold int) *Scorer {
	if threshold <= 0 {
		threshold = MatchThreshold
	}
	return &Scorer{threshold: threshold}
}

// Result lists the criteria that contributed to the score.
type Result struct {
	Score    int
	Criteria []string
}

// Evaluate scores candidate against job. Preference criteria are skipped when
// prefs is nil and address criteria when addr is nil. Preferences or an
// address recorded for a different candidate count as absent.
func (s *Scorer) Evaluate(candidate models.Candidate, job models.Job, prefs *models.Preference, addr *models.Address) Result {
	if prefs != nil && !ownedBy(candidate, prefs.CandidateUID) {
		prefs = nil
	}
	if addr != nil && !ownedBy(candidate, addr.CandidateUID) {
		addr = nil
	}

	var res Result
	add := func(ok bool, criterion string) {
		if ok {
			res.Score++
			res.Criteria = append(res.Criteria, criterion)
		}
	}

	if prefs != nil {
		add(jobTypeMatches(job.JobType, prefs), CriterionJobType)
		add(salaryWithinBand(job.MinSalary, job.MaxSalary, prefs.SalaryBand), CriterionSalaryBand)
		add(subjectsOverlap(prefs.TeachingSubjects, job), CriterionSubject)
		add(sameText(prefs.Country, job.Country), CriterionCountry)
		add(sameText(prefs.State, job.State), CriterionState)
		add(sameText(prefs.City, job.City), CriterionCity)
		add(subjectsOverlap(prefs.TeachingGrades, job), CriterionGrade)
	}

	if addr != nil {
		add(sameText(addr.State, job.State), CriterionAddressState)
		add(sameText(addr.City, job.City), CriterionAddressCity)
	}

	return res
}

func (s *Scorer) Score(candidate models.Candidate, job models.Job, prefs *models.Preference, addr *models.Address) int {
	return s.Evaluate(candidate, job, prefs, addr).Score
}

func (s *Scorer) IsMatch(candidate models.Candidate, job models.Job, prefs *models.Preference, addr *models.Address) bool {
	return s.Score(candidate, job, prefs, addr) >= s.threshold
}

func (s *Scorer) Threshold() int {
	return s.threshold
}

func ownedBy(candidate models.Candidate, uid string) bool {
	return uid == "" || candidate.UID == "" || uid == candidate.UID
}

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.NewReplacer("-", " ", "_", " ").Replace(v)
}

func containsAny(v string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

func jobTypeMatches(jobType string, prefs *models.Preference) bool {
	jt := normalize(jobType)
	if prefs.FullTimeOnline && containsAny(jt, onlineMarkers) {
		return true
	}
	if prefs.FullTimeOffline && (jt == "" || containsAny(jt, offlineMarkers)) {
		return true
	}
	return false
}

// salaryWithinBand requires the whole posted range to sit inside the band.
// The open-ended band only looks at the lower bound.
func salaryWithinBand(minSalary, maxSalary int, bandName string) bool {
	band, ok := salaryBands[strings.ToLower(strings.TrimSpace(bandName))]
	if !ok {
		return false
	}
	if band.openEnd {
		return minSalary >= band.min
	}
	return minSalary >= band.min && maxSalary <= band.max
}

// subjectsOverlap checks each preference value against the posting's core
// subjects and title, as a case-insensitive substring in either direction.
func subjectsOverlap(values []string, job models.Job) bool {
	title := normalize(job.Title)
	for _, raw := range values {
		v := normalize(raw)
		if v == "" {
			continue
		}
		if title != "" && overlaps(v, title) {
			return true
		}
		for _, subject := range job.CoreSubjects {
			if s := normalize(subject); s != "" && overlaps(v, s) {
				return true
			}
		}
	}
	return false
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func sameText(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
