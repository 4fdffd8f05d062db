package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrNoStructuredResult is returned when the model answers without the
// forced tool call, or when the tool input fails schema validation. It
// counts as an upstream failure and the queue's attempt budget handles it.
var ErrNoStructuredResult = errors.New("llm: no structured result in response")

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 4096
)

// Options controls how the vendor client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Anthropic Messages API. Structured
// calls bind exactly one tool derived from the target schema and force the
// model to use it; the decoded input is validated before being handed back.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	validate   *validator.Validate
}

// Image is one inline image attachment, base64 encoded.
type Image struct {
	Data      string
	MediaType string
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content string
}

// ToolSchema is implemented by output structs that describe themselves as
// a tool input schema.
type ToolSchema interface {
	ToolName() string
	ToolInputSchema() map[string]any
}

// NewClient constructs a client with sane defaults. Callers may provide a
// nil HTTP client; a reusable one with a generous timeout is created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	// invoke appends /v1/messages itself; tolerate base URLs configured
	// with the version path already on them.
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := opts.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
		validate:   validator.New(),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// SetAPIKey swaps the key at runtime, used when the key is loaded from the
// database after construction.
func (c *Client) SetAPIKey(key string) {
	c.apiKey = strings.TrimSpace(key)
}

type apiRequest struct {
	Model      string       `json:"model"`
	MaxTokens  int          `json:"max_tokens"`
	System     string       `json:"system,omitempty"`
	Tools      []apiTool    `json:"tools,omitempty"`
	ToolChoice *apiChoice   `json:"tool_choice,omitempty"`
	Messages   []apiMessage `json:"messages"`
}

type apiTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type apiChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type apiMessage struct {
	Role    string     `json:"role"`
	Content []apiBlock `json:"content"`
}

type apiBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponseBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type apiResponse struct {
	Content    []apiResponseBlock `json:"content"`
	StopReason string             `json:"stop_reason,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// Vision sends images plus a text prompt and decodes the forced tool call
// into out.
func (c *Client) Vision(ctx context.Context, images []Image, systemPrompt, userText string, out ToolSchema) error {
	blocks := make([]apiBlock, 0, len(images)+1)
	for _, img := range images {
		blocks = append(blocks, imageBlock(img))
	}
	if userText == "" {
		userText = "Analyze the provided image(s)."
	}
	blocks = append(blocks, apiBlock{Type: "text", Text: userText})

	return c.structured(ctx, systemPrompt, []apiMessage{{Role: "user", Content: blocks}}, out)
}

// TextPlain sends a text conversation and returns the model's free-text
// reply. Context images, when provided, are prepended as an initial
// exchange so the model can refer to them.
func (c *Client) TextPlain(ctx context.Context, messages []Message, systemPrompt string, contextImages []Image) (string, error) {
	var apiMsgs []apiMessage
	if len(contextImages) > 0 {
		blocks := make([]apiBlock, 0, len(contextImages)+1)
		for _, img := range contextImages {
			blocks = append(blocks, imageBlock(img))
		}
		blocks = append(blocks, apiBlock{Type: "text", Text: "Here is the Norwood scale reference chart for context."})
		apiMsgs = append(apiMsgs,
			apiMessage{Role: "user", Content: blocks},
			apiMessage{Role: "assistant", Content: []apiBlock{{
				Type: "text",
				Text: "Thank you for the reference chart. I'll use this to inform our conversation about hair loss.",
			}}},
		)
	}
	apiMsgs = append(apiMsgs, textMessages(messages)...)

	payload := apiRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  apiMsgs,
	}

	var response apiResponse
	if err := c.invoke(ctx, payload, &response); err != nil {
		return "", err
	}
	for _, block := range response.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	c.logger.Error().Str("model", c.model).Msg("llm: no text block in response")
	return "", ErrNoStructuredResult
}

func (c *Client) structured(ctx context.Context, systemPrompt string, messages []apiMessage, out ToolSchema) error {
	name := out.ToolName()
	payload := apiRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Tools: []apiTool{{
			Name:        name,
			Description: fmt.Sprintf("Return the %s result", name),
			InputSchema: out.ToolInputSchema(),
		}},
		ToolChoice: &apiChoice{Type: "tool", Name: name},
		Messages:   messages,
	}

	var response apiResponse
	if err := c.invoke(ctx, payload, &response); err != nil {
		return err
	}

	var input json.RawMessage
	for _, block := range response.Content {
		if block.Type == "tool_use" {
			input = block.Input
			break
		}
	}
	if len(input) == 0 {
		c.logger.Error().Str("model", c.model).Str("tool", name).Msg("llm: no tool use in response")
		return ErrNoStructuredResult
	}

	if err := json.Unmarshal(input, out); err != nil {
		c.logger.Error().Err(err).Str("tool", name).Msg("llm: tool input did not decode")
		return fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
	}
	if err := c.validate.Struct(out); err != nil {
		c.logger.Error().Err(err).Str("tool", name).Msg("llm: tool input failed validation")
		return fmt.Errorf("%w: %v", ErrNoStructuredResult, err)
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, payload apiRequest, out *apiResponse) error {
	if c.apiKey == "" {
		return errors.New("llm: api key is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke messages api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("messages api status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("messages api status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("messages api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func imageBlock(img Image) apiBlock {
	return apiBlock{
		Type: "image",
		Source: &apiImageSource{
			Type:      "base64",
			MediaType: img.MediaType,
			Data:      img.Data,
		},
	}
}

func textMessages(messages []Message) []apiMessage {
	out := make([]apiMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, apiMessage{
			Role:    m.Role,
			Content: []apiBlock{{Type: "text", Text: m.Content}},
		})
	}
	return out
}
