package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestManager() *Manager {
	return NewManager(5*time.Second, arbor.NewLogger())
}

func TestFetch_ParsesProviderResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"results": [
			{"proxy_address": "1.2.3.4", "port": 8080, "username": "u", "password": "p", "country_code": "US"},
			{"proxy_address": "5.6.7.8", "port": 9090, "username": "u2", "password": "p2", "country_code": "DE"}
		]}`))
	}))
	defer srv.Close()

	pool, err := newTestManager().Fetch(context.Background(), srv.URL, "test-key")
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "1.2.3.4", pool[0].Address)
	assert.Equal(t, 9090, pool[1].Port)
}

func TestFetch_Non200IsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestManager().Fetch(context.Background(), srv.URL, "bad-key")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestFetch_MissingResultsFieldIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"proxies": []}`))
	}))
	defer srv.Close()

	_, err := newTestManager().Fetch(context.Background(), srv.URL, "k")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestFetch_NetworkFailureReturnsEmptyPool(t *testing.T) {
	// Closed server: connection refused is a network-level failure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	pool, err := newTestManager().Fetch(context.Background(), srv.URL, "k")
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestSelectRandom_EmptyPool(t *testing.T) {
	_, err := SelectRandom(nil)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestSelectRandom_ReturnsPoolMember(t *testing.T) {
	pool := []Descriptor{
		{Address: "1.1.1.1", Port: 1},
		{Address: "2.2.2.2", Port: 2},
	}
	d, err := SelectRandom(pool)
	require.NoError(t, err)
	assert.Contains(t, pool, d)
}

func TestToBrowserConfig(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{
			name: "complete descriptor",
			desc: Descriptor{Address: "1.2.3.4", Port: 8080, Username: "u", Password: "p"},
		},
		{
			name:    "missing address",
			desc:    Descriptor{Port: 8080, Username: "u", Password: "p"},
			wantErr: true,
		},
		{
			name:    "missing port",
			desc:    Descriptor{Address: "1.2.3.4", Username: "u", Password: "p"},
			wantErr: true,
		},
		{
			name:    "missing username",
			desc:    Descriptor{Address: "1.2.3.4", Port: 8080, Password: "p"},
			wantErr: true,
		},
		{
			name:    "missing password",
			desc:    Descriptor{Address: "1.2.3.4", Port: 8080, Username: "u"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ToBrowserConfig(tt.desc)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedProxy))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://1.2.3.4:8080", cfg.Server)
			assert.Equal(t, "u", cfg.Username)
			assert.Equal(t, "p", cfg.Password)
		})
	}
}

func TestRandomUserAgent_FromRotationSet(t *testing.T) {
	for i := 0; i < 10; i++ {
		ua := RandomUserAgent()
		assert.Contains(t, userAgents, ua)
	}
}

func TestDescribe_OmitsCredentials(t *testing.T) {
	d := Descriptor{Address: "1.2.3.4", Port: 8080, Username: "secret", Password: "hunter2", CountryCode: "US"}
	out := Describe(d)
	assert.Equal(t, "1.2.3.4:8080 (US)", out)
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "hunter2")
}
