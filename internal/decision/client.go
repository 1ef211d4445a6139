// Package decision talks to the remote Gemini generateContent endpoint to
// choose the single next device action for a goal. The client is stateless
// by contract: no conversation memory, no caching, no retry. Every call
// carries only the current goal and the current screenshot.
package decision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/droidpilot/internal/config"
	"github.com/xkilldash9x/droidpilot/internal/llmutil"
	"github.com/xkilldash9x/droidpilot/internal/pilot"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client implements pilot.Decider against the Gemini REST wire contract.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	config     config.DecisionConfig
}

// -- Gemini wire structures --

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiSchemaProperty struct {
	Type string   `json:"type"`
	Enum []string `json:"enum,omitempty"`
}

type geminiResponseSchema struct {
	Type       string                          `json:"type"`
	Properties map[string]geminiSchemaProperty `json:"properties"`
	Required   []string                        `json:"required"`
}

type geminiGenerationConfig struct {
	Temperature      float64               `json:"temperature"`
	TopK             int                   `json:"topK"`
	TopP             float64               `json:"topP"`
	ResponseMIMEType string                `json:"responseMimeType"`
	ResponseSchema   *geminiResponseSchema `json:"responseSchema,omitempty"`
}

type geminiRequestPayload struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// decisionReply is the structured object embedded in the candidate text.
// The service is asked for command/status/reason, but replies using the
// action/continuation synonyms are tolerated.
type decisionReply struct {
	Command      string `json:"command"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	Continuation string `json:"continuation"`
	Reason       string `json:"reason"`
}

// NewClient initializes the decision client.
func NewClient(cfg config.DecisionConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("decision service API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		config:   cfg,
		httpClient: &http.Client{
			// Zero means no client-side timeout; an unresponsive service
			// stalls the run until it errors or the process is killed.
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("decision"),
	}, nil
}

// Decide sends the goal and the optional screenshot and parses the
// structured reply. Failures are *TransportError or *ParseError; the loop
// treats both as fatal but logs the specific cause.
func (c *Client) Decide(ctx context.Context, goal string, screenshot []byte) (pilot.Decision, error) {
	body, err := json.Marshal(c.buildRequestPayload(goal, screenshot))
	if err != nil {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("marshal request payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("create HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("execute HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Decision service returned error status",
			zap.Int("status", resp.StatusCode), zap.ByteString("response", respBody))
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
	}

	var payload geminiResponsePayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("decode response envelope: %w", err)}
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return pilot.Decision{}, &TransportError{Err: fmt.Errorf("no candidate content in response (finish reason %q)", finishReason(payload))}
	}

	dec, err := parseReply(payload.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return pilot.Decision{}, err
	}

	c.logger.Info("Decision received",
		zap.Duration("duration", time.Since(start)),
		zap.String("action", dec.Action),
		zap.Bool("done", dec.Done),
	)
	return dec, nil
}

func (c *Client) buildRequestPayload(goal string, screenshot []byte) geminiRequestPayload {
	parts := []geminiPart{
		{Text: systemPolicy + "\nOverall Task: " + goal},
	}
	if len(screenshot) > 0 {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(screenshot),
			},
		})
	}

	return geminiRequestPayload{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      c.config.Temperature,
			TopK:             c.config.TopK,
			TopP:             c.config.TopP,
			ResponseMIMEType: "application/json",
			ResponseSchema: &geminiResponseSchema{
				Type: "OBJECT",
				Properties: map[string]geminiSchemaProperty{
					"command": {Type: "STRING"},
					"status":  {Type: "STRING", Enum: []string{"continue", "done"}},
					"reason":  {Type: "STRING"},
				},
				Required: []string{"command", "status", "reason"},
			},
		},
	}
}

// parseReply extracts the decision from the candidate text, stripping a
// markdown fence if present and normalizing synonym keys.
func parseReply(text string) (pilot.Decision, error) {
	reply, err := llmutil.ParseJSONReply[decisionReply](text)
	if err != nil {
		return pilot.Decision{}, &ParseError{Err: err}
	}

	action := reply.Command
	if action == "" {
		action = reply.Action
	}
	status := reply.Status
	if status == "" {
		status = reply.Continuation
	}

	switch status {
	case "continue", "done":
	case "":
		return pilot.Decision{}, &ParseError{Err: fmt.Errorf("reply missing required status key")}
	default:
		return pilot.Decision{}, &ParseError{Err: fmt.Errorf("reply status %q is not continue or done", status)}
	}

	return pilot.Decision{
		Action:    action,
		Done:      status == "done",
		Rationale: reply.Reason,
	}, nil
}

func finishReason(payload geminiResponsePayload) string {
	if len(payload.Candidates) > 0 {
		return payload.Candidates[0].FinishReason
	}
	return "none"
}
