package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lender-enrich/internal/metrics"
	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/internal/resilience"
	"github.com/sells-group/lender-enrich/pkg/serpapi"
	"github.com/sells-group/lender-enrich/pkg/serpapi/mocks"
)

func TestSearch_NormalizesAllSections(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.Request{Query: "Jane Doe Acme", Num: 20}).Return(&serpapi.Response{
		OrganicResults: []serpapi.OrganicResult{
			{Title: "Jane Doe - Acme", Link: "https://acme.com/jane", Snippet: "Loan officer"},
		},
		KnowledgeGraph: &serpapi.KnowledgeGraph{
			Title:    "Acme Lending",
			Phone:    "(512) 555-0100",
			Website:  "https://acme.com",
			Profiles: json.RawMessage(`[ {"name": "LinkedIn"} ]`),
		},
		LocalResults: &serpapi.LocalResults{Places: []serpapi.Place{
			{Title: "Acme Lending", Address: "1 Main St", Phone: "(512) 555-0199"},
		}},
		AnswerBox: &serpapi.AnswerBox{Answer: "512-555-0142", Link: "https://acme.com/contact"},
	}, nil)

	results := NewProvider(client).Search(context.Background(), "Jane Doe Acme")

	require.Len(t, results, 4)
	assert.Equal(t, model.SearchResult{
		URL: "https://acme.com/jane", Title: "Jane Doe - Acme", Snippet: "Loan officer", Kind: model.KindOrganic,
	}, results[0])
	assert.Equal(t, model.SearchResult{
		URL:     "https://acme.com",
		Title:   "Acme Lending",
		Snippet: `Acme Lending (512) 555-0100 [{"name":"LinkedIn"}]`,
		Kind:    model.KindKnowledgeGraph,
	}, results[1])
	assert.Equal(t, model.SearchResult{
		Title: "Acme Lending", Snippet: "Acme Lending 1 Main St (512) 555-0199", Kind: model.KindLocalBusiness,
	}, results[2])
	assert.Equal(t, model.SearchResult{
		URL: "https://acme.com/contact", Snippet: "512-555-0142", Kind: model.KindAnswerBox,
	}, results[3])
}

func TestSearch_EmptyAnswerBoxSkipped(t *testing.T) {
	results := Normalize(&serpapi.Response{AnswerBox: &serpapi.AnswerBox{Link: "https://x.com"}})
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearch_ErrorYieldsEmpty(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("serpapi: send request: timeout")).Once()

	m := metrics.New()
	results := NewProvider(client, WithMetrics(m)).Search(context.Background(), "q")

	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearch_RetriesTransient(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("serpapi: unexpected status 503"), 503)).Once()
	client.On("Search", mock.Anything, mock.Anything).
		Return(&serpapi.Response{OrganicResults: []serpapi.OrganicResult{{Link: "https://a.com"}}}, nil).Once()

	p := NewProvider(client, WithRetries(1))
	p.retry.InitialBackoff = 1
	results := p.Search(context.Background(), "q")

	require.Len(t, results, 1)
	assert.Equal(t, "https://a.com", results[0].URL)
}

func TestSearch_NoRetryByDefault(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, mock.Anything).
		Return(nil, resilience.NewTransientError(errors.New("busy"), 503)).Once()

	results := NewProvider(client).Search(context.Background(), "q")
	assert.Empty(t, results)
}

func TestSearch_ResultCountOption(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("Search", mock.Anything, serpapi.Request{Query: "q", Num: 10}).Return(&serpapi.Response{}, nil)

	assert.Empty(t, NewProvider(client, WithResultCount(10)).Search(context.Background(), "q"))
}

func TestNormalize_KnowledgeGraphContact(t *testing.T) {
	results := Normalize(&serpapi.Response{KnowledgeGraph: &serpapi.KnowledgeGraph{
		Title:    "Acme",
		Email:    "jane@acme.com",
		Contact:  json.RawMessage(`{"phone": "512-555-0100"}`),
		Profiles: json.RawMessage(`null`),
	}})

	require.Len(t, results, 1)
	assert.Equal(t, `Acme jane@acme.com {"phone":"512-555-0100"}`, results[0].Snippet)
	assert.Empty(t, results[0].URL)
}

func TestNormalize_Nil(t *testing.T) {
	assert.Empty(t, Normalize(nil))
}
