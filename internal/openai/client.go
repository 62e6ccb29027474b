package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the OpenAI model used for insight extraction
	DefaultChatModel = openai.GPT4oMini
	// MaxInsights bounds how many insights one session can yield
	MaxInsights = 5
	// maxInsightLength bounds a single insight in runes
	maxInsightLength = 300
)

var (
	// ErrEmptySession is returned when a session has neither topic nor conclusion
	ErrEmptySession = errors.New("session has no topic or conclusion")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrMalformedResponse is returned when the model does not answer with a JSON array of strings
	ErrMalformedResponse = errors.New("model response is not a JSON array of strings")
)

const systemPrompt = `You extract reusable market knowledge from startup analysis sessions.
Answer with a JSON array of at most 5 short, self-contained facts about the industry.
Each fact is one sentence. Do not mention the venture by name. Answer with the JSON array only.`

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client extracts key insights from finished sessions
type Client struct {
	api ChatAPI
}

type OpenAIAdapter struct {
	client *openai.Client
	model  string
}

func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Complete calls the OpenAI chat completion API and returns the first choice
func (a *OpenAIAdapter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey    string
	ChatModel string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return &Client{api: NewOpenAIAdapter(cfg.APIKey, cfg.ChatModel)}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithConfig(Config{APIKey: apiKey, ChatModel: os.Getenv("OPENAI_MODEL")}), nil
}

// ExtractInsights asks the model for short free-form insights about the session.
// The result is deduplicated and capped at MaxInsights.
func (c *Client) ExtractInsights(ctx context.Context, session domain.Session, subject domain.SubjectEntity) ([]domain.Insight, error) {
	if strings.TrimSpace(session.Topic) == "" && strings.TrimSpace(session.Conclusion) == "" {
		return nil, ErrEmptySession
	}

	answer, err := c.api.Complete(ctx, systemPrompt, buildPrompt(session, subject))
	if err != nil {
		return nil, fmt.Errorf("failed to extract insights: %w", err)
	}

	texts, err := parseInsights(answer)
	if err != nil {
		return nil, err
	}

	insights := make([]domain.Insight, 0, len(texts))
	for _, t := range texts {
		insights = append(insights, domain.TextInsight(t))
	}
	return insights, nil
}

func buildPrompt(session domain.Session, subject domain.SubjectEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Industry: %s\n", subject.Industry)
	if subject.Segment != "" {
		fmt.Fprintf(&b, "Segment: %s\n", subject.Segment)
	}
	if subject.ProblemArea != "" {
		fmt.Fprintf(&b, "Problem area: %s\n", subject.ProblemArea)
	}
	fmt.Fprintf(&b, "Topic: %s\n", strings.TrimSpace(session.Topic))
	if c := strings.TrimSpace(session.Conclusion); c != "" {
		fmt.Fprintf(&b, "Conclusion: %s\n", c)
	}
	return b.String()
}

// parseInsights accepts the array either bare or inside a markdown code fence.
func parseInsights(answer string) ([]string, error) {
	s := strings.TrimSpace(answer)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, MaxInsights)
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t == "" || seen[t] {
			continue
		}
		if runes := []rune(t); len(runes) > maxInsightLength {
			t = string(runes[:maxInsightLength])
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxInsights {
			break
		}
	}
	return out, nil
}
