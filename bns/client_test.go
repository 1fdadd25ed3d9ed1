package bns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNamesOwnedBy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/addresses/stacks/SP1AAA/names", r.URL.Path)
		json.NewEncoder(w).Encode(namesResponse{Names: []string{"alice.btc", "alice.id"}})
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL).NamesOwnedBy(context.Background(), "SP1AAA")
	require.NoError(t, err)
	require.Equal(t, []string{"alice.btc", "alice.id"}, names)
}

func TestNamesOwnedByNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL).NamesOwnedBy(context.Background(), "SPNOBODY")
	require.NoError(t, err)
	require.Empty(t, names)
	require.NotNil(t, names)
}

func TestNamesOwnedByNullBodyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL).NamesOwnedBy(context.Background(), "SPX")
	require.NoError(t, err)
	require.NotNil(t, names)
	require.Empty(t, names)
}

func TestNamesOwnedByRetriesTransportFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			// hijack and drop the connection to force a transport error
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(namesResponse{Names: []string{"back.btc"}})
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL).NamesOwnedBy(context.Background(), "SPRETRY")
	require.NoError(t, err)
	require.Equal(t, []string{"back.btc"}, names)
	require.Equal(t, 2, attempts)
}

func TestNamesOwnedByGivesUpAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).NamesOwnedBy(context.Background(), "SPDOWN")
	require.Error(t, err)
}
