package decision

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/droidpilot/internal/config"
)

// -- Test Setup Helpers --

func validConfig() config.DecisionConfig {
	return config.DecisionConfig{
		Model:       "gemini-2.0-flash",
		APIKey:      "test-key",
		Temperature: 0.1,
		TopK:        1,
		TopP:        1,
		APITimeout:  5 * time.Second,
	}
}

// setupClient rigs a Client against a mock HTTP server.
func setupClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := validConfig()
	cfg.Endpoint = server.URL

	client, err := NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

// candidateResponse wraps reply text in the service's response envelope.
func candidateResponse(text string) string {
	envelope := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	b, _ := json.Marshal(envelope)
	return string(b)
}

// -- Test Cases: Initialization --

func TestNewClient_DefaultEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = ""

	client, err := NewClient(cfg, zaptest.NewLogger(t))

	require.NoError(t, err)
	expected := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	assert.Equal(t, expected, client.endpoint)
	assert.Equal(t, cfg.APITimeout, client.httpClient.Timeout)
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = ""

	client, err := NewClient(cfg, zaptest.NewLogger(t))

	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

// -- Test Cases: Request Construction --

// The request must carry the policy ahead of the goal, the screenshot as
// inline PNG data, and the structured-reply generation config.
func TestDecide_RequestPayloadShape(t *testing.T) {
	screenshot := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	var captured map[string]any

	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		fmt.Fprint(w, candidateResponse(`{"command":"input tap 1 1","status":"continue","reason":"r"}`))
	})

	_, err := client.Decide(context.Background(), "open settings", screenshot)
	require.NoError(t, err)

	contents := captured["contents"].([]any)
	require.Len(t, contents, 1)
	content := contents[0].(map[string]any)
	assert.Equal(t, "user", content["role"])

	parts := content["parts"].([]any)
	require.Len(t, parts, 2, "text part plus inline image part")

	text := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "Android automation assistant", "policy precedes the goal")
	assert.Contains(t, text, "Overall Task: open settings")

	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(screenshot), inline["data"])

	genCfg := captured["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", genCfg["responseMimeType"])
	assert.InDelta(t, 0.1, genCfg["temperature"].(float64), 1e-9)

	schema := genCfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
	assert.ElementsMatch(t, []any{"command", "status", "reason"}, schema["required"].([]any))
}

// Without a screenshot the image part is omitted entirely.
func TestDecide_NoScreenshotOmitsImagePart(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		var captured map[string]any
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		parts := captured["contents"].([]any)[0].(map[string]any)["parts"].([]any)
		assert.Len(t, parts, 1)

		fmt.Fprint(w, candidateResponse(`{"command":"input tap 1 1","status":"continue","reason":"r"}`))
	})

	_, err := client.Decide(context.Background(), "goal", nil)
	require.NoError(t, err)
}

// -- Test Cases: Reply Parsing --

func TestDecide_FencedReply(t *testing.T) {
	fenced := "```json\n{\"command\":\"am start -n com.android.settings/.Settings\",\"status\":\"done\",\"reason\":\"opened settings\"}\n```"
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(fenced))
	})

	dec, err := client.Decide(context.Background(), "open settings", nil)

	require.NoError(t, err)
	assert.Equal(t, "am start -n com.android.settings/.Settings", dec.Action)
	assert.True(t, dec.Done)
	assert.Equal(t, "opened settings", dec.Rationale)
}

func TestDecide_SynonymKeys(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"action":"input swipe 500 1500 500 500","continuation":"continue","reason":"scroll"}`))
	})

	dec, err := client.Decide(context.Background(), "goal", nil)

	require.NoError(t, err)
	assert.Equal(t, "input swipe 500 1500 500 500", dec.Action)
	assert.False(t, dec.Done)
}

func TestDecide_MissingStatusIsParseError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"command":"input tap 1 1","reason":"r"}`))
	})

	_, err := client.Decide(context.Background(), "goal", nil)

	require.Error(t, err)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "missing required status key")
}

func TestDecide_UnknownStatusIsParseError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"command":"input tap 1 1","status":"maybe","reason":"r"}`))
	})

	_, err := client.Decide(context.Background(), "goal", nil)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestDecide_MalformedJSONIsParseError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse("not json at all"))
	})

	_, err := client.Decide(context.Background(), "goal", nil)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

// -- Test Cases: Transport Failures --

func TestDecide_HTTPErrorIsTransportError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.Decide(context.Background(), "goal", nil)

	require.Error(t, err)
	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "status 429")
}

func TestDecide_NetworkFailureIsTransportError(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoint = "http://127.0.0.1:1" // nothing listens here
	client, err := NewClient(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Decide(context.Background(), "goal", nil)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestDecide_EmptyCandidatesIsTransportError(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	})

	_, err := client.Decide(context.Background(), "goal", nil)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "no candidate content")
}

func TestDecide_ContextCancellation(t *testing.T) {
	client := setupClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"command":"x","status":"continue","reason":"r"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Decide(ctx, "goal", nil)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}
