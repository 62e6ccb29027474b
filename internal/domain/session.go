package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Session is a finished analysis session that knowledge is extracted from.
type Session struct {
	ID         string          `json:"id,omitempty"`
	Topic      string          `json:"topic"`
	Conclusion string          `json:"conclusion,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	Metadata   SessionMetadata `json:"metadata,omitempty"`
}

// SessionMetadata carries optional extraction hints.
type SessionMetadata struct {
	KeyInsights []Insight `json:"keyInsights,omitempty"`
}

// SubjectEntity is the venture a session analysed.
type SubjectEntity struct {
	ID          string   `json:"id,omitempty"`
	Industry    string   `json:"industry"`
	Segment     string   `json:"segment,omitempty"`
	ProblemArea string   `json:"problemArea,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Insight is either a free-form string or a structured fact.
type Insight struct {
	Text          string
	Title         string
	Content       string
	KnowledgeType KnowledgeType
	Confidence    *float64
}

type structuredInsight struct {
	Title         string        `json:"title,omitempty"`
	Content       string        `json:"content,omitempty"`
	KnowledgeType KnowledgeType `json:"knowledgeType,omitempty"`
	Confidence    *float64      `json:"confidence,omitempty"`
}

// TextInsight builds a free-form insight.
func TextInsight(text string) Insight {
	return Insight{Text: text}
}

// IsStructured reports whether the insight was given as an object.
func (i Insight) IsStructured() bool {
	return i.Title != "" || i.Content != "" || i.KnowledgeType != ""
}

// UnmarshalJSON accepts both a JSON string and a JSON object.
func (i *Insight) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*i = Insight{Text: text}
		return nil
	}

	var s structuredInsight
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("insight must be a string or an object: %w", err)
	}
	*i = Insight{
		Title:         s.Title,
		Content:       s.Content,
		KnowledgeType: s.KnowledgeType,
		Confidence:    s.Confidence,
	}
	return nil
}

// MarshalJSON writes free-form insights as strings.
func (i Insight) MarshalJSON() ([]byte, error) {
	if !i.IsStructured() {
		return json.Marshal(i.Text)
	}
	return json.Marshal(structuredInsight{
		Title:         i.Title,
		Content:       i.Content,
		KnowledgeType: i.KnowledgeType,
		Confidence:    i.Confidence,
	})
}
