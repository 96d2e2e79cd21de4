package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lender-enrich/internal/config"
	"github.com/sells-group/lender-enrich/internal/delivery"
)

const harrisCSV = "First Name,Last Name,Company,work_email,mobile_phone,State\n" +
	"Jane,Doe,Acme Mortgage,,,TX\n" +
	"John,Roe,Beta Lending,john@betalending.com,5125550102,TX\n"

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fakeSerpAPI answers every query with a snippet carrying Jane's contacts.
func fakeSerpAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"Jane Doe - Acme Mortgage","snippet":"Reach Jane at jane@acmemortgage.com or (512) 555-0101"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// fakeRegistry reports every number as listed.
func fakeRegistry(t *testing.T, nationalDNC string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("Output"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"RESPONSECODE":"OK","RESPONSEMSG":"","national_dnc":"` + nationalDNC + `","state_dnc":"N","iscell":"Y","id":"42"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, searchURL, registryURL string) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Search = config.SearchConfig{APIKey: "serp-key", BaseURL: searchURL, TimeoutSecs: 5, Num: 10}
	c.DNC = config.DNCConfig{Token: "rv-token", BaseURL: registryURL, TimeoutSecs: 5}
	c.Store.DSN = filepath.Join(t.TempDir(), "runs.db")
	c.Delivery.TimeoutSecs = 5
	return c
}

func TestRunEnrich_DryRun(t *testing.T) {
	input := writeInput(t, "Harris County.csv", harrisCSV)

	var out bytes.Buffer
	err := runEnrich(context.Background(), &config.Config{}, enrichOptions{Input: input, DryRun: true}, &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "file: Harris County.csv")
	assert.Contains(t, got, "county: Harris")
	assert.Contains(t, got, "needs_enrichment: 1")
	assert.Contains(t, got, "- Jane Doe")
	assert.NotContains(t, got, "John Roe")
}

func TestRunEnrich_RequiresSearchKey(t *testing.T) {
	input := writeInput(t, "list.csv", harrisCSV)

	err := runEnrich(context.Background(), &config.Config{}, enrichOptions{Input: input}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.api_key is required")
}

func TestRunEnrich_MissingInput(t *testing.T) {
	err := runEnrich(context.Background(), &config.Config{}, enrichOptions{Input: "/nonexistent/list.csv"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunEnrich_FullRun(t *testing.T) {
	serp, calls := fakeSerpAPI(t)
	registry := fakeRegistry(t, "Y")
	c := testConfig(t, serp.URL, registry.URL)

	input := writeInput(t, "Harris County.csv", harrisCSV)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.csv")
	reportPath := filepath.Join(dir, "report.md")

	var out bytes.Buffer
	err := runEnrich(context.Background(), c, enrichOptions{
		Input:  input,
		Output: outPath,
		Report: reportPath,
	}, &out)
	require.NoError(t, err)

	// Found in the first query's snippet, so one search and no scrape.
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, out.String(), "2 records, 1 enriched, 0 not found, 0 failed, 2 on DNC")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(delivery.Header, ","), lines[0])
	assert.Contains(t, lines[1], "jane@acmemortgage.com")
	assert.Contains(t, lines[1], "Mortgage Lender,dnc")
	assert.Contains(t, lines[2], "john@betalending.com")

	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "Lender Enrichment Report")
	assert.Contains(t, string(report), "Harris County.csv")
}

func TestRunEnrich_LimitAndSkipDNC(t *testing.T) {
	serp, _ := fakeSerpAPI(t)
	var registryCalls atomic.Int32
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		registryCalls.Add(1)
	}))
	defer registry.Close()

	c := testConfig(t, serp.URL, registry.URL)
	input := writeInput(t, "Harris County.csv", harrisCSV)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	var out bytes.Buffer
	err := runEnrich(context.Background(), c, enrichOptions{Input: input, Output: outPath, Limit: 1, SkipDNC: true}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "1 records, 1 enriched")
	assert.Equal(t, int32(0), registryCalls.Load())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dnc")
	assert.NotContains(t, string(data), "John")
}

func TestRunEnrich_Deliver(t *testing.T) {
	serp, _ := fakeSerpAPI(t)
	registry := fakeRegistry(t, "N")

	var got delivery.Upload
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer hook.Close()

	c := testConfig(t, serp.URL, registry.URL)
	c.Delivery.WebhookURL = hook.URL

	input := writeInput(t, "Harris County.csv", harrisCSV)
	outPath := filepath.Join(t.TempDir(), delivery.Filename("Harris"))

	err := runEnrich(context.Background(), c, enrichOptions{Input: input, Output: outPath, Deliver: true}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "Harris_County_mortgage_lenders_with_contacts.csv", got.Filename)
	assert.Equal(t, "TX", got.StateCode)
	assert.Equal(t, "Harris", got.County)
	assert.Equal(t, 2, got.TotalRecords)
	assert.Contains(t, got.CSVContent, "jane@acmemortgage.com")
	assert.False(t, got.Timestamp.IsZero())
}

func TestRunEnrich_DeliverNotConfigured(t *testing.T) {
	serp, _ := fakeSerpAPI(t)
	registry := fakeRegistry(t, "N")
	c := testConfig(t, serp.URL, registry.URL)

	input := writeInput(t, "list.csv", harrisCSV)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	err := runEnrich(context.Background(), c, enrichOptions{Input: input, Output: outPath, Deliver: true}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")
}
