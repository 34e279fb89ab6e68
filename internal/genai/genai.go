// Package genai generates schedule templates from a natural-language brief
// via the Claude API. Generated templates go through the same validation as
// hand-written ones before they are ever solved.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/validate"
)

const defaultModel = anthropic.ModelClaudeSonnet4_0

// Client asks Claude to draft schedule templates.
type Client struct {
	api   anthropic.Client
	model anthropic.Model
}

// NewClient resolves the API key (argument first, then ANTHROPIC_API_KEY)
// and the model name (empty selects the default Sonnet) into a ready client.
func NewClient(apiKey, modelName string) (*Client, error) {
	key := apiKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("no API key: pass one or set ANTHROPIC_API_KEY")
	}

	c := &Client{
		api:   anthropic.NewClient(option.WithAPIKey(key)),
		model: defaultModel,
	}
	if modelName != "" {
		c.model = anthropic.Model(modelName)
	}
	return c, nil
}

const generatePrompt = `You are an expert project planner. Given a description of a plan (a meal, an event, a work project), produce a schedule template as JSON.

Rules:
- Every step has a unique short id, a title, and durationMins >= 1.
- Dependencies reference predecessor step ids; kind is one of FinishToStart, StartToStart, FinishToFinish, StartToFinish (omit for FinishToStart).
- timingPolicy is Asap or Alap; omit for Asap.
- Resources have kind Equipment, People, or Consumable and capacity >= 1; steps reference them in resourceNeeds with quantity >= 1.
- Do not create dependency cycles. A step cannot depend on itself.
- Durations are realistic estimates in minutes.

Return your answer as JSON with this exact structure:
{
  "id": "<kebab-case template id>",
  "name": "<human name>",
  "description": "<one sentence>",
  "steps": [{"id": "...", "title": "...", "durationMins": 1, "dependencies": [{"predecessorStepId": "..."}], "resourceNeeds": [{"resourceId": "...", "quantity": 1}]}],
  "tracks": [],
  "resources": []
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here is the plan to schedule:
`

// Generate asks Claude for a template matching the brief and decodes it.
// The caller still runs the strict validation pass.
func (c *Client) Generate(ctx context.Context, brief string) (*model.Template, error) {
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(8192),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(generatePrompt + brief)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return decodeTemplate(text.String())
}

// decodeTemplate turns Claude's reply into a normalized template. The prompt
// forbids markdown fences but models add them anyway, so any first/last
// fence lines are dropped before unmarshalling.
func decodeTemplate(reply string) (*model.Template, error) {
	lines := strings.Split(strings.TrimSpace(reply), "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	raw := strings.TrimSpace(strings.Join(lines, "\n"))

	var t model.Template
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, raw)
	}
	validate.Normalize(&t)
	return &t, nil
}
