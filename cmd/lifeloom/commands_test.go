package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lifeloom/lifeloom/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestChatRequestShape(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p1/chat": `{"reply":"Tell me more.","current_phase":"CHILDHOOD","progress":33}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/projects/p1/chat", map[string]any{
		"message":         "I grew up in Ohio",
		"ready_confirmed": false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Reply        string `json:"reply"`
		CurrentPhase string `json:"current_phase"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.Reply != "Tell me more." {
		t.Errorf("reply = %q, want 'Tell me more.'", result.Reply)
	}
	if result.CurrentPhase != "CHILDHOOD" {
		t.Errorf("phase = %q, want CHILDHOOD", result.CurrentPhase)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["message"] != "I grew up in Ohio" {
		t.Errorf("body.message = %v, want the chat text", body["message"])
	}
	if body["ready_confirmed"] != false {
		t.Errorf("body.ready_confirmed = %v, want false", body["ready_confirmed"])
	}
}

func TestSummaryRequestShape(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p1/summary": `{"summary":"A childhood by the river.","phases_summarized":["CHILDHOOD"]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/projects/p1/summary", map[string]any{
		"phases": []string{"CHILDHOOD"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Summary string   `json:"summary"`
		Phases  []string `json:"phases_summarized"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.Summary == "" || len(result.Phases) != 1 {
		t.Errorf("unexpected summary response: %+v", result)
	}

	var body struct {
		Phases []string `json:"phases"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if len(body.Phases) != 1 || body.Phases[0] != "CHILDHOOD" {
		t.Errorf("phases = %v, want [CHILDHOOD]", body.Phases)
	}
}

func TestImportCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"import", "p1"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing flags")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestSnippetListPath(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects/p1/snippets": `[{"id":"sn-1","title":"First day of school","content":"...","phase":"CHILDHOOD","theme":"growth","display_order":0,"is_locked":true}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/projects/p1/snippets?phase=CHILDHOOD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snippets []snippetView
	if err := decodeJSON(resp, &snippets); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(snippets))
	}
	if !snippets[0].IsLocked {
		t.Error("expected snippet to be locked")
	}
	if ts.requests[0].Path != "/projects/p1/snippets?phase=CHILDHOOD" {
		t.Errorf("path = %q, want phase filter preserved", ts.requests[0].Path)
	}
}

func TestReorderSendsIDs(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /projects/p1/snippets/order": `[{"id":"b"},{"id":"a"}]`,
	})

	client := ts.client()
	resp, err := client.put(ctx, "/projects/p1/snippets/order", map[string]any{
		"ids": []string{"b", "a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snippets []snippetView
	if err := decodeJSON(resp, &snippets); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if len(body.IDs) != 2 || body.IDs[0] != "b" {
		t.Errorf("ids = %v, want [b a]", body.IDs)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/projects")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Gemini.Models = "gemini-2.5-flash"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}
