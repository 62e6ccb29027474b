package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/config"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionDoc = `{
	"session": {
		"id": "session-1",
		"topic": "Market entry strategy for fintech",
		"conclusion": "SMBs complain about slow onboarding",
		"confidence": 0.8,
		"metadata": {"keyInsights": ["Rising adoption of embedded finance", {"title": "Open banking", "content": "APIs mandated", "knowledgeType": "regulation"}]}
	},
	"subject": {"id": "venture-1", "industry": "fintech", "segment": "payments", "tags": ["b2b"]}
}`

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowpool.db")
	t.Setenv("KNOWPOOL_STORE_DRIVER", "sqlite")
	t.Setenv("KNOWPOOL_SQLITE_PATH", path)
	t.Setenv("KNOWPOOL_DATABASE_URL", "")
	t.Setenv("KNOWPOOL_S3_ENDPOINT", "")
	return path
}

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRuntime_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	cfg := &config.Config{
		StoreDriver:     config.StoreDriverSQLite,
		SQLitePath:      path,
		StalenessFloor:  0.1,
		ContextMaxChars: 500,
	}

	rt, err := newRuntime(context.Background(), cfg, runtimeOptions{Storage: true})
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Ranking)
	assert.NotNil(t, rt.Context)
	assert.NotNil(t, rt.Queue)
	assert.Nil(t, rt.Snapshots, "no object storage configured")
	assert.FileExists(t, path)
}

func TestNewRuntime_BadDecayPolicy(t *testing.T) {
	cfg := &config.Config{
		StoreDriver:     config.StoreDriverSQLite,
		SQLitePath:      filepath.Join(t.TempDir(), "pool.db"),
		DecayPolicyFile: filepath.Join(t.TempDir(), "missing.yaml"),
	}

	_, err := newRuntime(context.Background(), cfg, runtimeOptions{})
	assert.ErrorContains(t, err, "decay policy")
}

func TestReadAccumulateInput(t *testing.T) {
	input, err := readAccumulateInput(strings.NewReader(sessionDoc), "-")
	require.NoError(t, err)
	assert.Equal(t, "fintech", input.Subject.Industry)
	require.Len(t, input.Session.Metadata.KeyInsights, 2)
	assert.Equal(t, domain.KnowledgeTypeRegulation, input.Session.Metadata.KeyInsights[1].KnowledgeType)

	_, err = readAccumulateInput(strings.NewReader(`{"session":{"topic":"x"},"subject":{}}`), "")
	assert.ErrorContains(t, err, "subject.industry is required")

	_, err = readAccumulateInput(strings.NewReader(`{"session":{},"extra":1}`), "-")
	assert.ErrorContains(t, err, "failed to parse session document")

	_, err = readAccumulateInput(nil, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to open")
}

func TestCommands_AccumulateThenQuery(t *testing.T) {
	useSQLite(t)

	out, err := run(t, AccumulateCmd(), sessionDoc)
	require.NoError(t, err)
	assert.Contains(t, out, "Accumulated 3 entries into fintech")

	// A second identical session reinforces instead of duplicating.
	_, err = run(t, AccumulateCmd(), sessionDoc)
	require.NoError(t, err)

	out, err = run(t, RankCmd(), "", "fintech", "-o", "json")
	require.NoError(t, err)
	jsonStart := strings.Index(out, "[")
	require.GreaterOrEqual(t, jsonStart, 0)
	var entries []rankedJSON
	require.NoError(t, json.Unmarshal([]byte(out[jsonStart:]), &entries))
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, 2, e.ExtractionCount)
		assert.Equal(t, "payments", e.Segment)
	}

	out, err = run(t, RankCmd(), "", "fintech", "--type", "regulation")
	require.NoError(t, err)
	assert.Contains(t, out, "Open banking")

	out, err = run(t, ContextCmd(), "", "fintech", "--max-chars", "400")
	require.NoError(t, err)
	assert.Contains(t, out, "fintech")

	out, err = run(t, HierarchyCmd(), "", "fintech")
	require.NoError(t, err)
	assert.Contains(t, out, "payments")
}

func TestCommands_QueueSession(t *testing.T) {
	useSQLite(t)

	out, err := run(t, AccumulateCmd(), sessionDoc, "--queue")
	require.NoError(t, err)
	assert.Contains(t, out, "Session queued as job")
}

func TestRankCmd_UnknownType(t *testing.T) {
	useSQLite(t)

	_, err := run(t, RankCmd(), "", "fintech", "--type", "gossip")
	assert.ErrorContains(t, err, `unknown knowledge type "gossip"`)
}

func TestSnapshotCmd_NotConfigured(t *testing.T) {
	useSQLite(t)

	_, err := run(t, SnapshotCmd(), "", "export", "fintech")
	assert.ErrorIs(t, err, domain.ErrStorageNotConfigured)
}

func TestClassifyCmd(t *testing.T) {
	out, err := run(t, ClassifyCmd(), "", "Competitors", "raised", "a", "Series", "B")
	require.NoError(t, err)
	assert.Equal(t, "competitor (expires after 60 days)\n", out)
}

func TestPrintHierarchy_Text(t *testing.T) {
	now := time.Now().UTC()
	entry := func(title string) *domain.RankedEntry {
		return &domain.RankedEntry{
			KnowledgeEntry:      domain.NewKnowledgeEntry("fintech", domain.KnowledgeTypeTrend, title, "", 0.6, now),
			EffectiveConfidence: 0.6,
		}
	}
	tree := service.Hierarchy{
		"payments": {"onboarding": {entry("b")}},
		"general":  {"general": {entry("a")}},
	}

	var buf bytes.Buffer
	require.NoError(t, printHierarchy(&buf, "text", tree))
	assert.Equal(t, "general\n  general\n    [trend] a (0.60)\npayments\n  onboarding\n    [trend] b (0.60)\n", buf.String())

	buf.Reset()
	require.NoError(t, printHierarchy(&buf, "text", service.Hierarchy{}))
	assert.Equal(t, "No entries found.\n", buf.String())
}
