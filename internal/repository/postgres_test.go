package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRepo(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

// ==========================
// Approval record
// ==========================

func TestGetApprovalRecord(t *testing.T) {
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantNil   bool
		wantErr   bool
	}{
		{
			name: "record found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM profile_approvals").
					WithArgs("user-1").
					WillReturnRows(sqlmock.NewRows([]string{"user_id", "approved", "rejected", "admin_message", "updated_at"}).
						AddRow("user-1", true, false, "Welcome aboard", updated))
			},
		},
		{
			name: "no record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM profile_approvals").
					WithArgs("user-1").
					WillReturnError(sql.ErrNoRows)
			},
			wantNil: true,
		},
		{
			name: "query error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM profile_approvals").
					WithArgs("user-1").
					WillReturnError(errors.New("connection reset"))
			},
			wantNil: true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := createTestRepo(t)
			tt.setupMock(mock)

			rec, err := repo.GetApprovalRecord(context.Background(), "user-1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrQueryFailed)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, rec)
			} else {
				require.NotNil(t, rec)
				assert.True(t, rec.Approved)
				assert.Equal(t, "Welcome aboard", rec.Message)
				assert.True(t, updated.Equal(rec.UpdatedAt))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Job postings
// ==========================

func TestGetJobsByOwner(t *testing.T) {
	repo, mock := createTestRepo(t)
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	cols := []string{"id", "owner_id", "approved", "title", "min_salary", "max_salary", "job_type",
		"core_subjects", "country", "state", "city", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT (.+) FROM job_postings").
		WithArgs("owner-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("job-1", "owner-1", true, "Physics Teacher", 30000, 40000, "Full Time",
				[]byte(`["Physics","Maths"]`), "India", "Karnataka", "Bengaluru", created, updated).
			AddRow("job-2", "owner-1", false, "Art Teacher", 20000, 25000, "Online",
				[]byte(`not json`), "India", "Kerala", "Kochi", created, nil))

	jobs, err := repo.GetJobsByOwner(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, []string{"Physics", "Maths"}, jobs[0].CoreSubjects)
	assert.True(t, updated.Equal(jobs[0].ChangedAt()))

	assert.Empty(t, jobs[1].CoreSubjects)
	assert.True(t, jobs[1].UpdatedAt.IsZero())
	assert.True(t, created.Equal(jobs[1].ChangedAt()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobsByOwner_QueryError(t *testing.T) {
	repo, mock := createTestRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM job_postings").
		WithArgs("owner-1").
		WillReturnError(errors.New("timeout"))

	_, err := repo.GetJobsByOwner(context.Background(), "owner-1")
	assert.ErrorIs(t, err, ErrQueryFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Candidate data
// ==========================

func TestListCandidateData(t *testing.T) {
	repo, mock := createTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT candidate_uid, approved FROM candidate_approvals").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_uid", "approved"}).
			AddRow("c1", true).
			AddRow("c2", false))
	mock.ExpectQuery("SELECT job_id, candidate_uid FROM job_applications").
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "candidate_uid"}).
			AddRow("job-1", "c2"))
	mock.ExpectQuery("SELECT (.+) FROM job_preferences").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_uid", "full_time_online", "full_time_offline",
			"salary_band", "teaching_subjects", "teaching_grades", "country", "state", "city"}).
			AddRow("c1", false, true, "20k_40k", []byte(`["Physics"]`), nil, "India", "Karnataka", "Bengaluru"))
	mock.ExpectQuery("SELECT (.+) FROM candidate_addresses").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_uid", "country", "state", "city"}).
			AddRow("c1", "India", "Karnataka", "Mysuru"))

	approvals, err := repo.ListCandidateApprovals(ctx)
	require.NoError(t, err)
	assert.Len(t, approvals, 2)

	apps, err := repo.ListApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c2", apps[0].CandidateUID)

	prefs, err := repo.ListPreferences(ctx)
	require.NoError(t, err)
	require.Contains(t, prefs, "c1")
	assert.Equal(t, []string{"Physics"}, prefs["c1"].TeachingSubjects)
	assert.Empty(t, prefs["c1"].TeachingGrades)
	assert.True(t, prefs["c1"].FullTimeOffline)

	addrs, err := repo.ListPresentAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mysuru", addrs["c1"].City)

	assert.NoError(t, mock.ExpectationsWereMet())
}
