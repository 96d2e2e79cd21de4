package realvalidation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNCLookup_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rpvWebService/DNCLookup.php", r.URL.Path)
		assert.Equal(t, "5125550134", r.URL.Query().Get("phone"))
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "json", r.URL.Query().Get("Output"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"RESPONSECODE":"OK","RESPONSEMSG":"","national_dnc":"Y","state_dnc":"N","dma":"N","litigator":"N","iscell":"Y","id":"abc123"}`))
	}))
	defer srv.Close()

	resp, err := NewClient("tok", WithBaseURL(srv.URL)).DNCLookup(context.Background(), "5125550134")

	require.NoError(t, err)
	assert.Equal(t, &LookupResponse{
		ResponseCode: CodeOK,
		NationalDNC:  "Y",
		StateDNC:     "N",
		DMA:          "N",
		Litigator:    "N",
		IsCell:       "Y",
		ID:           "abc123",
	}, resp)
}

func TestDNCLookup_ErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"RESPONSECODE":"-1","RESPONSEMSG":"Invalid token"}`))
	}))
	defer srv.Close()

	resp, err := NewClient("bad", WithBaseURL(srv.URL)).DNCLookup(context.Background(), "5125550134")

	require.NoError(t, err)
	assert.Equal(t, CodeError, resp.ResponseCode)
	assert.Equal(t, "Invalid token", resp.ResponseMsg)
}

func TestDNCLookup_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := NewClient("tok", WithBaseURL(srv.URL)).DNCLookup(context.Background(), "5125550134")

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "realvalidation: unexpected status 500")
}

func TestDNCLookup_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient("tok", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond)).
		DNCLookup(context.Background(), "5125550134")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "realvalidation: send request")
}

func TestDNCLookup_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := NewClient("tok", WithBaseURL(srv.URL)).DNCLookup(context.Background(), "5125550134")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "realvalidation: unmarshal response")
}
