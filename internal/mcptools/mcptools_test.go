package mcptools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, industry string, opts service.RankOptions) ([]*domain.RankedEntry, error) {
	args := m.Called(ctx, industry, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankedEntry), args.Error(1)
}

type MockContextBuilder struct {
	mock.Mock
}

func (m *MockContextBuilder) BuildContext(ctx context.Context, industry string, opts service.ContextOptions) string {
	return m.Called(ctx, industry, opts).String(0)
}

type MockAccumulator struct {
	mock.Mock
}

func (m *MockAccumulator) Accumulate(ctx context.Context, input service.AccumulateInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestDefinitions(t *testing.T) {
	tests := []struct {
		def      mcp.Tool
		name     string
		required []string
	}{
		{NewContextTool(nil).Definition(), "knowledge_context", []string{"industry"}},
		{NewRankTool(nil).Definition(), "knowledge_rank", []string{"industry"}},
		{NewAccumulateTool(nil).Definition(), "knowledge_accumulate", []string{"industry"}},
		{NewClassifyTool().Definition(), "knowledge_classify", []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.def.Name)
			assert.NotEmpty(t, tt.def.Description)
			assert.ElementsMatch(t, tt.required, tt.def.InputSchema.Required)
			for _, r := range tt.required {
				assert.Contains(t, tt.def.InputSchema.Properties, r)
			}
		})
	}
}

func TestContextTool_Handle(t *testing.T) {
	builder := new(MockContextBuilder)
	tool := NewContextTool(builder)

	builder.On("BuildContext", mock.Anything, "fintech", service.ContextOptions{
		Segment:  "payments",
		MaxChars: 500,
		Patterns: &service.PatternRequest{Tags: []string{"b2b"}},
	}).Return("## Domain Knowledge: fintech")

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"industry":  "fintech",
		"segment":   "payments",
		"max_chars": float64(500),
		"tags":      []interface{}{"b2b", " ", 7},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "## Domain Knowledge: fintech", resultText(res))
	builder.AssertExpectations(t)
}

func TestContextTool_Handle_Empty(t *testing.T) {
	builder := new(MockContextBuilder)
	tool := NewContextTool(builder)
	builder.On("BuildContext", mock.Anything, "agritech", service.ContextOptions{}).Return("")

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"industry": "agritech"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(res), "No knowledge accumulated for agritech")
}

func TestContextTool_Handle_MissingIndustry(t *testing.T) {
	tool := NewContextTool(new(MockContextBuilder))

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"industry": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "industry is required")
}

func TestRankTool_Handle(t *testing.T) {
	ranker := new(MockRanker)
	tool := NewRankTool(ranker)

	e := domain.NewKnowledgeEntry("fintech", domain.KnowledgeTypeCompetitor, "Acme raised $50M", "Series B", 0.8, time.Now().UTC())
	e.ID = "k-1"
	e.Segment = "payments"
	ranker.On("Rank", mock.Anything, "fintech", mock.MatchedBy(func(o service.RankOptions) bool {
		return o.KnowledgeType == domain.KnowledgeTypeCompetitor && o.Limit == 3 &&
			o.MinEffectiveConfidence != nil && *o.MinEffectiveConfidence == 0.2
	})).Return([]*domain.RankedEntry{{KnowledgeEntry: e, FreshnessScore: 1, EffectiveConfidence: 0.8}}, nil)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"industry":       "fintech",
		"type":           "competitor",
		"limit":          float64(3),
		"min_confidence": 0.2,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(res)
	assert.Contains(t, text, "1 entries for fintech")
	assert.Contains(t, text, "[competitor] Acme raised $50M")
	assert.Contains(t, text, "effective 0.80")
	assert.Contains(t, text, "segment: payments")
	assert.Contains(t, text, "id: k-1")
}

func TestRankTool_Handle_Errors(t *testing.T) {
	ranker := new(MockRanker)
	tool := NewRankTool(ranker)
	ranker.On("Rank", mock.Anything, "down", mock.Anything).Return(nil, domain.NewStoreError("scan", errors.New("refused")))
	ranker.On("Rank", mock.Anything, "empty", mock.Anything).Return([]*domain.RankedEntry{}, nil)

	tests := []struct {
		name    string
		args    map[string]interface{}
		isError bool
		want    string
	}{
		{"unknown type", map[string]interface{}{"industry": "fintech", "type": "gossip"}, true, `unknown knowledge type "gossip"`},
		{"floor out of range", map[string]interface{}{"industry": "fintech", "min_confidence": 2.0}, true, "min_confidence"},
		{"store unavailable", map[string]interface{}{"industry": "down"}, true, "store unavailable"},
		{"no entries", map[string]interface{}{"industry": "empty"}, false, "No entries found for empty."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestAccumulateTool_Handle(t *testing.T) {
	acc := new(MockAccumulator)
	tool := NewAccumulateTool(acc)

	acc.On("Accumulate", mock.Anything, mock.MatchedBy(func(in service.AccumulateInput) bool {
		return in.Subject.Industry == "fintech" &&
			in.Subject.Segment == "payments" &&
			assert.ObjectsAreEqual([]string{"b2b"}, in.Subject.Tags) &&
			in.Session.Topic == "Market entry" &&
			in.Session.Confidence != nil && *in.Session.Confidence == 0.9 &&
			len(in.Session.Metadata.KeyInsights) == 2 &&
			in.Session.Metadata.KeyInsights[0].Text == "SMBs complain about onboarding"
	})).Return(3, nil)

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"industry":   "fintech",
		"segment":    "payments",
		"tags":       []interface{}{"b2b"},
		"topic":      "Market entry",
		"confidence": 0.9,
		"insights":   []interface{}{"SMBs complain about onboarding", "Open banking APIs mandated"},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Accumulated 3 entries into fintech.", resultText(res))
	acc.AssertExpectations(t)
}

func TestAccumulateTool_Handle_Validation(t *testing.T) {
	acc := new(MockAccumulator)
	tool := NewAccumulateTool(acc)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing industry", map[string]interface{}{"topic": "x"}, "industry is required"},
		{"no topic or conclusion", map[string]interface{}{"industry": "fintech"}, "topic or conclusion is required"},
		{"confidence out of range", map[string]interface{}{"industry": "fintech", "topic": "x", "confidence": 1.2}, "confidence must be within [0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
	acc.AssertNotCalled(t, "Accumulate", mock.Anything, mock.Anything)
}

func TestAccumulateTool_Handle_DomainError(t *testing.T) {
	acc := new(MockAccumulator)
	tool := NewAccumulateTool(acc)
	acc.On("Accumulate", mock.Anything, mock.Anything).Return(0, domain.NewDomainError(domain.ErrCodeValidation, "industry is required"))

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"industry": "fintech", "conclusion": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "industry is required", resultText(res))
}

func TestClassifyTool_Handle(t *testing.T) {
	tool := NewClassifyTool()

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"text": "New GDPR compliance rules"}))
	require.NoError(t, err)
	assert.Equal(t, "regulation (expires after 365 days)", resultText(res))
}

func TestNewServer(t *testing.T) {
	s := NewServer(Deps{Ranker: new(MockRanker), Context: new(MockContextBuilder), Accumulator: new(MockAccumulator)})
	require.NotNil(t, s)
}
