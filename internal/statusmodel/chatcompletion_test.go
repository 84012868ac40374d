package statusmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octostatus/estate-reporter/internal/errs"
	"github.com/octostatus/estate-reporter/internal/evidence"
)

func TestChatCompletion_SummariseRepository_ParsesContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": `{"status":"on_track","summary_text":"fine"}`}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	c := NewChatCompletion(ChatCompletionConfig{Endpoint: srv.URL, Model: "gpt-test"})
	summary, err := c.SummariseRepository(context.Background(), evidence.Bundle{})
	require.NoError(t, err)
	require.Equal(t, "fine", summary.SummaryText)
	require.NotNil(t, summary.Usage)
	require.Equal(t, 15, summary.Usage.TotalTokens)
}

func TestChatCompletion_Invoke_MapsServerErrorToRemote5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChatCompletion(ChatCompletionConfig{Endpoint: srv.URL, Model: "gpt-test"})
	_, err := c.SummariseRepository(context.Background(), evidence.Bundle{})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Remote5xx, e.Kind)
}

func TestChatCompletion_Invoke_MapsClientErrorToRemote4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewChatCompletion(ChatCompletionConfig{Endpoint: srv.URL, Model: "gpt-test"})
	_, err := c.SummariseRepository(context.Background(), evidence.Bundle{})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.Remote4xx, e.Kind)
}

func TestChatCompletion_Invoke_NoChoicesIsSchemaDrift(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []map[string]interface{}{}})
	}))
	defer srv.Close()

	c := NewChatCompletion(ChatCompletionConfig{Endpoint: srv.URL, Model: "gpt-test"})
	_, err := c.SummariseRepository(context.Background(), evidence.Bundle{})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.SchemaDrift, e.Kind)
}

func TestChatCompletion_Name_IncludesConfiguredModel(t *testing.T) {
	c := NewChatCompletion(ChatCompletionConfig{Model: "gpt-test"})
	require.Equal(t, "chat_completion/gpt-test", c.Name())
}
