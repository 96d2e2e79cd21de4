package serpapi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Response is the subset of a search.json response the enrichment uses.
// Every section is optional.
type Response struct {
	Error          string          `json:"error,omitempty"`
	OrganicResults []OrganicResult `json:"organic_results,omitempty"`
	KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	LocalResults   *LocalResults   `json:"local_results,omitempty"`
	AnswerBox      *AnswerBox      `json:"answer_box,omitempty"`
}

// OrganicResult is a regular web hit.
type OrganicResult struct {
	Position int    `json:"position,omitempty"`
	Title    Text   `json:"title"`
	Link     string `json:"link"`
	Snippet  Text   `json:"snippet"`
}

// KnowledgeGraph is the knowledge panel. Profiles and Contact are passed
// through verbatim.
type KnowledgeGraph struct {
	Title       Text            `json:"title"`
	Description Text            `json:"description"`
	Phone       Text            `json:"phone"`
	Email       Text            `json:"email"`
	Website     string          `json:"website"`
	Profiles    json.RawMessage `json:"profiles,omitempty"`
	Contact     json.RawMessage `json:"contact,omitempty"`
}

// LocalResults holds local business cards.
type LocalResults struct {
	Places []Place `json:"places,omitempty"`
}

// UnmarshalJSON accepts the object form only. Some result layouts send a
// bare array here, which carries no places in the shape used.
func (l *LocalResults) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*l = LocalResults{}
		return nil
	}
	type plain LocalResults
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = LocalResults(p)
	return nil
}

// Place is one local business card.
type Place struct {
	Title   Text   `json:"title"`
	Address Text   `json:"address"`
	Phone   Text   `json:"phone"`
	Website string `json:"website"`
}

// AnswerBox is the direct answer block.
type AnswerBox struct {
	Answer  Text   `json:"answer"`
	Title   Text   `json:"title"`
	Snippet Text   `json:"snippet"`
	Link    string `json:"link"`
}

// Text is a string field that tolerates numbers and ignores other JSON
// types instead of failing the whole response.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return err
		}
		*t = Text(data)
	default:
		*t = ""
	}
	return nil
}

func (t Text) String() string { return string(t) }
