//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "github.com/simaogato/irrflow/internal/adapter/grpc"
	"github.com/simaogato/irrflow/internal/adapter/repository/postgres"
	"github.com/simaogato/irrflow/internal/domain"
	"github.com/simaogato/irrflow/internal/finance"
	"github.com/simaogato/irrflow/internal/usecase/pipeline"
	"github.com/simaogato/irrflow/internal/usecase/report"
)

var (
	db     *postgres.DB
	tables = postgres.Tables{
		Cashflows: "it_cashflows",
		Irrs:      "it_entity_irrs",
	}
)

// TestMain sets up the test environment
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database
	var err error
	db, err = postgres.NewDB(getDBConnectionString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	// 2. Self-Healing Setup: create the test tables if they don't exist
	if err := db.EnsureSchema(ctx, tables.Cashflows, tables.Irrs); err != nil {
		panic(fmt.Sprintf("Failed to ensure schema: %v", err))
	}

	// Run tests
	code := m.Run()

	_ = db.Close()
	os.Exit(code)
}

// getDBConnectionString returns the database connection string from environment or defaults
func getDBConnectionString() string {
	if connStr := os.Getenv("IRR_DB_CONN_STR"); connStr != "" {
		return connStr
	}

	host := getEnv("IRR_DB_HOST", "localhost")
	port := getEnv("IRR_DB_PORT", "5432")
	user := getEnv("IRR_DB_USER", "postgres")
	password := getEnv("IRR_DB_PASSWORD", "postgres")
	dbname := getEnv("IRR_DB_NAME", "irrflow")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func day(month time.Month) *time.Time {
	d := time.Date(2022, month, 1, 0, 0, 0, 0, time.UTC)
	return &d
}

func cf(date *time.Time, inflow, outflow, value int64, name domain.EntityName) domain.Cashflow {
	return domain.NewCashflow(date, decimal.NewFromInt(inflow), decimal.NewFromInt(outflow), decimal.NewFromInt(value), name)
}

// warehouseCashflows is the two-account fixture
func warehouseCashflows() []domain.Cashflow {
	return []domain.Cashflow{
		cf(day(1), 1000, 0, 1000, "Test Account 1"),
		cf(day(2), 0, 100, 1000, "Test Account 1"),
		cf(day(3), 0, 100, 1000, "Test Account 1"),
		cf(day(4), 0, 100, 1000, "Test Account 1"),
		cf(day(5), 0, 100, 1000, "Test Account 1"),
		cf(day(3), 1000, 0, 1000, "Test Account 2"),
		cf(day(4), 0, 0, 1100, "Test Account 2"),
	}
}

// TestPipelineAgainstPostgres seeds the fixture, runs the pipeline and reads back the published rows
func TestPipelineAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewRepository(db, tables)

	require.NoError(t, repo.ReplaceCashflows(ctx, warehouseCashflows()))

	service := pipeline.NewPipelineService(repo, finance.NewSolver(), pipeline.Options{Parallelism: 2})

	// Run twice: truncate-then-load must not duplicate rows
	for i := 0; i < 2; i++ {
		result, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, result.Cashflows)
		assert.Equal(t, 5, result.Irrs)
	}

	irrs, err := repo.GetIrrs(ctx)
	require.NoError(t, err)

	expected := []domain.IrrRecord{
		{Date: "2022-02-01", IrrMonthly: 0.1, IrrAnnual: 2.1384, EntityName: "Test Account 1"},
		{Date: "2022-03-01", IrrMonthly: 0.1, IrrAnnual: 2.1384, EntityName: "Test Account 1"},
		{Date: "2022-04-01", IrrMonthly: 0.1, IrrAnnual: 2.1384, EntityName: "Test Account 1"},
		{Date: "2022-05-01", IrrMonthly: 0.1, IrrAnnual: 2.1384, EntityName: "Test Account 1"},
		{Date: "2022-04-01", IrrMonthly: 0.1, IrrAnnual: 2.1384, EntityName: "Test Account 2"},
	}
	require.Len(t, irrs, len(expected))
	for i, irr := range irrs {
		assert.Equal(t, expected[i], irr.ToRecord())
	}

	summaries, err := report.NewReportService(repo).GetSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 4, summaries[0].Periods)
	assert.InDelta(t, 0.1, summaries[0].MeanMonthly, 1e-9)
}

// TestCustomSourceQuery reads through a filtering source query
func TestCustomSourceQuery(t *testing.T) {
	ctx := context.Background()
	seed := postgres.NewRepository(db, tables)
	require.NoError(t, seed.ReplaceCashflows(ctx, warehouseCashflows()))

	filtered := postgres.NewRepository(db, postgres.Tables{
		Cashflows:   tables.Cashflows,
		Irrs:        tables.Irrs,
		SourceQuery: `SELECT date, inflow, outflow, value, entity_name FROM it_cashflows WHERE entity_name = 'Test Account 2'`,
	})

	cashflows, err := filtered.GetCashflows(ctx)
	require.NoError(t, err)
	assert.Len(t, cashflows, 2)
}

// TestRunningServer triggers a deployed server; skipped unless IRR_HTTP_ADDRESS and IRR_GRPC_ADDRESS are set
func TestRunningServer(t *testing.T) {
	httpAddr := os.Getenv("IRR_HTTP_ADDRESS")
	grpcAddr := os.Getenv("IRR_GRPC_ADDRESS")
	if httpAddr == "" || grpcAddr == "" {
		t.Skip("IRR_HTTP_ADDRESS and IRR_GRPC_ADDRESS not set")
	}

	body := strings.NewReader(`{"message":{"data":"","messageId":"it"},"subscription":"integration"}`)
	req, err := http.NewRequest(http.MethodPost, "http://"+httpAddr+"/v1/pubsub", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+os.Getenv("IRR_API_TOKEN"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	health, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: grpcadapter.PipelineService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, health.GetStatus())
}
