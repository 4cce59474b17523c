// Package recommendation tells job providers how many eligible candidates
// match each of their recently approved postings.
package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"notification-engine/internal/adapters/supersede"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/matching"
	"notification-engine/internal/models"

	"golang.org/x/sync/errgroup"
)

const Name = "recommendation"

var (
	ErrJobFetchFailed       = errors.New("JOB_FETCH_FAILED")
	ErrCandidateFetchFailed = errors.New("CANDIDATE_FETCH_FAILED")
)

func BaseID(jobID, userID string) string {
	return "application-" + jobID + "-" + userID
}

type JobReader interface {
	GetJobsByOwner(ctx context.Context, ownerID string) ([]models.Job, error)
}

type CandidateReader interface {
	ListCandidates(ctx context.Context) ([]models.Candidate, error)
}

// CandidateDataReader serves the candidate-side tables the scorer needs.
type CandidateDataReader interface {
	ListCandidateApprovals(ctx context.Context) ([]models.CandidateApproval, error)
	ListApplications(ctx context.Context) ([]models.Application, error)
	ListPreferences(ctx context.Context) (map[string]models.Preference, error)
	ListPresentAddresses(ctx context.Context) (map[string]models.Address, error)
}

type Adapter struct {
	config     *Config
	jobs       JobReader
	candidates CandidateReader
	data       CandidateDataReader
	scorer     *matching.Scorer
	resolver   *supersede.Resolver
	logger     logger.Logger
	now        func() time.Time
}

func NewAdapter(
	config *Config,
	jobs JobReader,
	candidates CandidateReader,
	data CandidateDataReader,
	scorer *matching.Scorer,
	resolver *supersede.Resolver,
	log logger.Logger,
) *Adapter {
	if config == nil {
		config = LoadConfig()
	}
	return &Adapter{
		config:     config,
		jobs:       jobs,
		candidates: candidates,
		data:       data,
		scorer:     scorer,
		resolver:   resolver,
		logger:     logger.Component(log, Name),
		now:        time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

type pool struct {
	candidates []models.Candidate
	approvals  []models.CandidateApproval
	apps       []models.Application
	prefs      map[string]models.Preference
	addrs      map[string]models.Address
}

func (a *Adapter) Run(ctx context.Context, userID string, prev []models.Notification) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	jobs, err := a.jobs.GetJobsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobFetchFailed, err)
	}

	kept := a.recentApproved(jobs)
	if len(kept) == 0 {
		return nil, nil
	}

	p, err := a.fetchPool(ctx)
	if err != nil {
		return nil, err
	}

	eligible := eligibleCandidates(p, kept)

	var out []models.Notification
	emitted := make(map[string]bool)
	for _, job := range kept {
		count := a.countMatches(job, eligible, p)
		if count == 0 {
			continue
		}

		fresh := render(job, userID, count)
		emitted[fresh.BaseID] = true
		out = append(out, a.resolver.Resolve(ctx, prev, fresh)...)

		a.logger.Debug("recommendations computed", map[string]interface{}{
			"userId":     userID,
			"jobId":      job.ID,
			"matchCount": count,
			"eligible":   len(eligible),
		})
	}

	// postings that dropped to zero matches keep their earlier notification
	prefix := "application-"
	suffix := "-" + userID
	for _, n := range prev {
		if n.Type != models.TypeApplication || emitted[n.BaseID] {
			continue
		}
		if strings.HasPrefix(n.BaseID, prefix) && strings.HasSuffix(n.BaseID, suffix) {
			out = append(out, n)
		}
	}

	return out, nil
}

func (a *Adapter) recentApproved(jobs []models.Job) []models.Job {
	cutoff := a.now().Add(-a.config.Window)
	var kept []models.Job
	for _, job := range jobs {
		if job.Approved && !job.ChangedAt().Before(cutoff) {
			kept = append(kept, job)
		}
	}
	return kept
}

func (a *Adapter) fetchPool(ctx context.Context) (*pool, error) {
	var p pool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		p.candidates, err = a.candidates.ListCandidates(gctx)
		return err
	})
	g.Go(func() (err error) {
		p.approvals, err = a.data.ListCandidateApprovals(gctx)
		return err
	})
	g.Go(func() (err error) {
		p.apps, err = a.data.ListApplications(gctx)
		return err
	})
	g.Go(func() (err error) {
		p.prefs, err = a.data.ListPreferences(gctx)
		return err
	})
	g.Go(func() (err error) {
		p.addrs, err = a.data.ListPresentAddresses(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCandidateFetchFailed, err)
	}
	return &p, nil
}

// eligibleCandidates keeps approved candidates from the pool that have not
// applied to any of the kept postings.
func eligibleCandidates(p *pool, kept []models.Job) []models.Candidate {
	approved := make(map[string]bool, len(p.approvals))
	for _, ap := range p.approvals {
		if ap.Approved {
			approved[ap.CandidateUID] = true
		}
	}

	keptIDs := make(map[string]bool, len(kept))
	for _, job := range kept {
		keptIDs[job.ID] = true
	}
	applied := make(map[string]bool)
	for _, app := range p.apps {
		if keptIDs[app.JobID] {
			applied[app.CandidateUID] = true
		}
	}

	var out []models.Candidate
	for _, c := range p.candidates {
		if approved[c.UID] && !applied[c.UID] {
			out = append(out, c)
		}
	}
	return out
}

func (a *Adapter) countMatches(job models.Job, eligible []models.Candidate, p *pool) int {
	count := 0
	for _, c := range eligible {
		var prefs *models.Preference
		if pref, ok := p.prefs[c.UID]; ok {
			prefs = &pref
		}
		var addr *models.Address
		if ad, ok := p.addrs[c.UID]; ok {
			addr = &ad
		}
		if a.scorer.IsMatch(c, job, prefs, addr) {
			count++
		}
	}
	return count
}

func render(job models.Job, userID string, count int) models.Notification {
	noun := "candidates match"
	if count == 1 {
		noun = "candidate matches"
	}
	return models.Notification{
		BaseID:          BaseID(job.ID, userID),
		Type:            models.TypeApplication,
		Title:           "New candidate recommendations",
		Message:         fmt.Sprintf("%d %s your posting %q", count, noun, job.Title),
		Timestamp:       job.ChangedAt(),
		SourceUpdatedAt: job.ChangedAt(),
		JobID:           job.ID,
		JobTitle:        job.Title,
		MatchCount:      count,
	}
}
