package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/myrjola/lifeplan/internal/e2etest"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI imitates the chat completions endpoint. It answers with the configured content, or with an HTTP 500
// when failing is set.
type fakeOpenAI struct {
	mu      sync.Mutex
	content string
	failing bool
	calls   int
}

func (f *fakeOpenAI) respond(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
	f.failing = false
}

func (f *fakeOpenAI) fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = true
}

func (f *fakeOpenAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	if f.failing {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"the model is overloaded","type":"server_error"}}`))
		return
	}
	resp := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": f.content},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

type testEnv map[string]string

func (e testEnv) lookup(key string) (string, bool) {
	v, ok := e[key]
	return v, ok
}

// newTestEnv returns the configuration of a server listening on a random port with an in-memory database.
func newTestEnv(openAIURL string) testEnv {
	return testEnv{
		"LIFEPLAN_ADDR":       "localhost:0",
		"LIFEPLAN_SQLITE_URL": ":memory:",
		"OPENAI_API_KEY":      "test-key",
		"OPENAI_BASE_URL":     openAIURL + "/v1",
	}
}

type testServer struct {
	*e2etest.Server
	openAI *fakeOpenAI
}

// startTestServer starts the server against a fake model endpoint. Entries in overrides replace the defaults of
// newTestEnv.
func startTestServer(t *testing.T, overrides testEnv) testServer {
	t.Helper()
	openAI := &fakeOpenAI{mu: sync.Mutex{}, content: `{"updates":[],"side_notes":[]}`, failing: false, calls: 0}
	openAISrv := httptest.NewServer(openAI)
	t.Cleanup(openAISrv.Close)

	env := newTestEnv(openAISrv.URL)
	for k, v := range overrides {
		env[k] = v
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, env.lookup, run)
	require.NoError(t, err)
	return testServer{Server: server, openAI: openAI}
}
