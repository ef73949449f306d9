package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRunner_Trigger(t *testing.T) {
	var got struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	id := uuid.New()
	err := NewHTTPRunner(srv.URL, "secret", "").Trigger(context.Background(), Job{
		EntryID:     id,
		Keyword:     "platform engineering",
		ArticleType: "guide",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "main", got.Ref)
	assert.Equal(t, "platform engineering", got.Inputs["keyword"])
	assert.Equal(t, "guide", got.Inputs["article_type"])
	assert.Equal(t, id.String(), got.Inputs["entry_id"])
}

func TestHTTPRunner_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewHTTPRunner(srv.URL, "", "main").Trigger(context.Background(), Job{EntryID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "workflow not found")
}

func TestHTTPRunner_Misconfigured(t *testing.T) {
	err := NewHTTPRunner("", "", "").Trigger(context.Background(), Job{})
	assert.ErrorContains(t, err, "misconfigured")
}
