package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/referralmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ model.Model = (*Model)(nil)

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": "MATCH"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	m := NewModelFromClient(&client, func(o *Options) { o.Model = "claude-test" })

	resp, err := model.Complete(context.Background(), m, model.Request{
		Instructions: "judge",
		Messages:     []model.Message{{Role: "user", Text: "Profile: [1,1,1,1]"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "MATCH", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 13, resp.Usage.TotalTokens)
	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 16, body["max_tokens"])
	assert.NotEmpty(t, body["system"])
}

func TestModel_GenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL+"/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	_, err := model.Complete(context.Background(), m, model.Request{Messages: []model.Message{{Role: "user", Text: "hi"}}})
	assert.ErrorContains(t, err, "anthropic api error")
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: "user", Text: "q"},
		{Role: "assistant", Text: "a"},
		{Role: "user", Text: ""},
	})
	assert.Len(t, msgs, 2)
}
