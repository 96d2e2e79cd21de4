package model

// MaxCandidates caps the number of emails and phones kept per extraction.
const MaxCandidates = 5

// ContactCandidate holds the contact values found in one piece of text.
// Both lists are unique, in first-appearance order, and at most MaxCandidates long.
type ContactCandidate struct {
	Emails []string `json:"emails"`
	Phones []string `json:"phones"`
}

// Empty reports whether nothing was found.
func (c ContactCandidate) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0
}

// ResultKind identifies which section of a search response a result came from.
type ResultKind string

const (
	KindOrganic        ResultKind = "organic"
	KindKnowledgeGraph ResultKind = "knowledge_graph"
	KindLocalBusiness  ResultKind = "local_business"
	KindAnswerBox      ResultKind = "answer_box"
)

// SearchResult is a normalized search hit.
type SearchResult struct {
	URL     string     `json:"url"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Kind    ResultKind `json:"kind"`
}

// SnippetSource is the source recorded for contacts found in a result
// snippet that carries no URL.
const SnippetSource = "search_snippet"

// EnrichmentOutcome is the best contact found for a record.
type EnrichmentOutcome struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Source     string `json:"source"`
	Confidence int    `json:"confidence"`
}

// Found reports whether the outcome carries an email or a phone.
func (o EnrichmentOutcome) Found() bool {
	return o.Email != "" || o.Phone != ""
}
