package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) (*RunRepo, *AccountRepo) {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunRepo(db), NewAccountRepo(db)
}

func newRun(id, hash string, kind RunKind, createdAt time.Time) *Run {
	return &Run{
		ID:          id,
		Kind:        kind,
		Status:      RunCompleted,
		FileHash:    hash,
		SourceFile:  "/tmp/" + id + "/source.csv",
		TargetFile:  "/tmp/" + id + "/target.csv",
		SummaryJSON: `{"matched":1}`,
		ResultJSON:  `{"matches":[]}`,
		CreatedBy:   "ana",
		CreatedAt:   createdAt,
	}
}

func TestRunInsertAndGet(t *testing.T) {
	runs, _ := newTestRepos(t)

	in := newRun("run-1", "hash-1", RunMovement, time.Now().UTC())
	require.NoError(t, runs.Insert(in))

	out, err := runs.GetByID("run-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, RunMovement, out.Kind)
	assert.Equal(t, RunCompleted, out.Status)
	assert.Equal(t, `{"matches":[]}`, out.ResultJSON)
	assert.Equal(t, "ana", out.CreatedBy)

	missing, err := runs.GetByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunGetByHash(t *testing.T) {
	runs, _ := newTestRepos(t)

	require.NoError(t, runs.Insert(newRun("run-1", "hash-1", RunFiscal, time.Now().UTC())))

	out, err := runs.GetByHash("hash-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "run-1", out.ID)

	none, err := runs.GetByHash("absent")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRunListNewestFirstWithoutPayload(t *testing.T) {
	runs, _ := newTestRepos(t)

	base := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		kind := RunMovement
		if i%2 == 1 {
			kind = RunFiscal
		}
		r := newRun(fmt.Sprintf("run-%d", i), fmt.Sprintf("hash-%d", i), kind, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, runs.Insert(r))
	}

	out, total, err := runs.List(RunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, out, 5)
	assert.Equal(t, "run-4", out[0].ID)
	assert.Empty(t, out[0].ResultJSON)

	fiscalOnly, total, err := runs.List(RunFilter{Kind: "fiscal"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, fiscalOnly, 2)

	paged, total, err := runs.List(RunFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, paged, 2)
	assert.Equal(t, "run-2", paged[0].ID)
}

func TestRunDuplicateIDRejected(t *testing.T) {
	runs, _ := newTestRepos(t)
	require.NoError(t, runs.Insert(newRun("run-1", "a", RunMovement, time.Now().UTC())))
	assert.Error(t, runs.Insert(newRun("run-1", "b", RunMovement, time.Now().UTC())))
}

func TestDashboardStats(t *testing.T) {
	runs, _ := newTestRepos(t)

	empty, err := runs.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalRuns)
	assert.Nil(t, empty.LastRunAt)

	base := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, runs.Insert(newRun("run-1", "h1", RunMovement, base)))
	require.NoError(t, runs.Insert(newRun("run-2", "h2", RunFiscal, base.Add(time.Hour))))

	stats, err := runs.GetDashboardStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.MovementRuns)
	assert.Equal(t, 1, stats.FiscalRuns)
	require.NotNil(t, stats.LastRunAt)
	assert.Equal(t, base.Add(time.Hour), stats.LastRunAt.UTC())
	assert.Equal(t, string(RunCompleted), stats.LastStatus)
}

func TestAccountsRoundTrip(t *testing.T) {
	_, accounts := newTestRepos(t)

	none, err := accounts.FirstCompany()
	require.NoError(t, err)
	assert.Nil(t, none)

	company := &Company{ID: "c1", Name: "Escritorio Central Lda", NIF: "5417111222", CreatedAt: time.Now().UTC()}
	require.NoError(t, accounts.InsertCompany(company))

	got, err := accounts.FirstCompany()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Escritorio Central Lda", got.Name)

	user := &User{ID: "u1", CompanyID: "c1", Username: "ana", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, accounts.InsertUser(user))

	// Unique username enforced by the schema.
	dup := &User{ID: "u2", CompanyID: "c1", Username: "ana", PasswordHash: "y", CreatedAt: time.Now().UTC()}
	assert.Error(t, accounts.InsertUser(dup))

	found, err := accounts.GetUserByUsername("ana")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)

	absent, err := accounts.GetUserByUsername("bob")
	require.NoError(t, err)
	assert.Nil(t, absent)

	n, err := accounts.CountUsers("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
