package utils

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestR2ConfigEnabled(t *testing.T) {
	full := R2Config{AccountID: "acct", AccessKeyID: "key", AccessKeySecret: "secret", Bucket: "reports"}
	assert.True(t, full.Enabled())

	missing := full
	missing.Bucket = ""
	assert.False(t, missing.Enabled())
}

func TestR2ArchiverUploadJSON(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotType     string
		gotBody     []byte
		gotAuthSeen bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
			return
		}
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAuthSeen = r.Header.Get("Authorization") != ""
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	archiver, err := NewR2Archiver(context.Background(), R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "reports",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)

	location, err := archiver.UploadJSON(context.Background(), "reports/campaigns/20250101T000000Z.json", map[string]int{"grants": 3})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/reports/reports/campaigns/20250101T000000Z.json", location)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/reports/reports/campaigns/20250101T000000Z.json", gotPath, "path-style addressing")
	assert.Equal(t, "application/json", gotType)
	assert.True(t, gotAuthSeen, "requests are signed")

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, 3, decoded["grants"])
}
