// Package repository reads the source-of-truth records that notification
// sources are built from.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notification-engine/internal/models"
)

var ErrQueryFailed = errors.New("QUERY_EXECUTION_FAILED")

// Postgres serves approval records, postings and candidate data.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// GetApprovalRecord returns nil without error when the user has no record.
func (p *Postgres) GetApprovalRecord(ctx context.Context, userID string) (*models.ApprovalRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT user_id, approved, rejected, COALESCE(admin_message, ''), updated_at
		FROM profile_approvals WHERE user_id = $1`, userID)

	var rec models.ApprovalRecord
	err := row.Scan(&rec.UserID, &rec.Approved, &rec.Rejected, &rec.Message, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: approval record: %v", ErrQueryFailed, err)
	}
	return &rec, nil
}

func (p *Postgres) GetJobsByOwner(ctx context.Context, ownerID string) ([]models.Job, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, owner_id, approved, title, min_salary, max_salary, job_type,
		       core_subjects, country, state, city, created_at, updated_at
		FROM job_postings WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: job postings: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			job       models.Job
			subjects  []byte
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&job.ID, &job.OwnerID, &job.Approved, &job.Title,
			&job.MinSalary, &job.MaxSalary, &job.JobType, &subjects,
			&job.Country, &job.State, &job.City, &job.CreatedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan job posting: %v", ErrQueryFailed, err)
		}
		job.CoreSubjects = decodeList(subjects)
		if updatedAt.Valid {
			job.UpdatedAt = updatedAt.Time
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: job postings: %v", ErrQueryFailed, err)
	}
	return jobs, nil
}

func (p *Postgres) ListCandidateApprovals(ctx context.Context) ([]models.CandidateApproval, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT candidate_uid, approved FROM candidate_approvals`)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate approvals: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.CandidateApproval
	for rows.Next() {
		var a models.CandidateApproval
		if err := rows.Scan(&a.CandidateUID, &a.Approved); err != nil {
			return nil, fmt.Errorf("%w: scan candidate approval: %v", ErrQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) ListApplications(ctx context.Context) ([]models.Application, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT job_id, candidate_uid FROM job_applications`)
	if err != nil {
		return nil, fmt.Errorf("%w: applications: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.JobID, &a.CandidateUID); err != nil {
			return nil, fmt.Errorf("%w: scan application: %v", ErrQueryFailed, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListPreferences returns job preferences keyed by candidate uid.
func (p *Postgres) ListPreferences(ctx context.Context) (map[string]models.Preference, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT candidate_uid, full_time_online, full_time_offline, COALESCE(salary_band, ''),
		       teaching_subjects, teaching_grades,
		       COALESCE(country, ''), COALESCE(state, ''), COALESCE(city, '')
		FROM job_preferences`)
	if err != nil {
		return nil, fmt.Errorf("%w: job preferences: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make(map[string]models.Preference)
	for rows.Next() {
		var (
			pref             models.Preference
			subjects, grades []byte
		)
		if err := rows.Scan(&pref.CandidateUID, &pref.FullTimeOnline, &pref.FullTimeOffline,
			&pref.SalaryBand, &subjects, &grades, &pref.Country, &pref.State, &pref.City); err != nil {
			return nil, fmt.Errorf("%w: scan job preference: %v", ErrQueryFailed, err)
		}
		pref.TeachingSubjects = decodeList(subjects)
		pref.TeachingGrades = decodeList(grades)
		out[pref.CandidateUID] = pref
	}
	return out, rows.Err()
}

// ListPresentAddresses returns present addresses keyed by candidate uid.
func (p *Postgres) ListPresentAddresses(ctx context.Context) (map[string]models.Address, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT candidate_uid, COALESCE(country, ''), COALESCE(state, ''), COALESCE(city, '')
		FROM candidate_addresses WHERE address_type = 'present'`)
	if err != nil {
		return nil, fmt.Errorf("%w: present addresses: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make(map[string]models.Address)
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.CandidateUID, &a.Country, &a.State, &a.City); err != nil {
			return nil, fmt.Errorf("%w: scan address: %v", ErrQueryFailed, err)
		}
		out[a.CandidateUID] = a
	}
	return out, rows.Err()
}

// decodeList reads a JSONB string array column. Bad or null values yield an
// empty list.
func decodeList(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return []string{}
	}
	return out
}
