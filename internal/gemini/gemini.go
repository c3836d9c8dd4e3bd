// © 2025 Anton Osokin. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package gemini provides a very minimal client for interacting with Gemini
// API.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.osokin.dev/notifier/internal/request"
)

const defaultAPIURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash-lite"

// Client holds configuration for interacting with the Gemini API.
type Client struct {
	// APIKey is the API key used for authentication.
	APIKey string
	// Model is the model used for generation, e.g. "gemini-2.0-flash-lite".
	Model string
	// APIURL overrides the API endpoint in tests.
	APIURL string
	// HTTPClient is an optional HTTP client to use for requests. Defaults to
	// request.DefaultClient.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
}

// GenerateContentParams defines the structure for the request body sent to the
// GenerateContent API.
type GenerateContentParams struct {
	// Contents is a list of Content objects representing the input text for
	// generation.
	Contents []*Content `json:"contents"`
	// SystemInstruction is an optional Content object specifying system
	// instructions for generation.
	SystemInstruction *Content `json:"systemInstruction,omitempty"`
	// GenerationConfig holds the sampling knobs for generation.
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// GenerationConfig holds model sampling parameters and the response format.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	// ResponseMIMEType is "text/plain" or "application/json".
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	// ResponseSchema constrains JSON responses; requires ResponseMIMEType to be
	// "application/json".
	ResponseSchema *Schema `json:"responseSchema,omitempty"`
}

// Schema is a subset of the OpenAPI schema object accepted by the API.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// Content represents a piece of text content with a list of Part objects.
type Content struct {
	// Parts is a list of Part objects representing the textual elements within
	// the content.
	Parts []*Part `json:"parts"`
	// Role is the producer of the content. Must be either 'user' or 'model'.
	Role string `json:"role,omitempty"`
}

// Part represents a textual element within a Content object.
type Part struct {
	// Text is the content of the textual element.
	Text string `json:"text,omitempty"`
}

// GenerateContentResponse defines the structure of the response received from
// the GenerateContent API.
type GenerateContentResponse struct {
	// Candidates is a list of Candidate objects representing the generated text
	// alternatives.
	Candidates []*Candidate `json:"candidates"`
}

// Candidate represents a generated text candidate with a corresponding Content
// object.
type Candidate struct {
	// Content is the generated text content for this candidate.
	Content *Content `json:"content"`
}

// Text returns the concatenated text parts of the first candidate, or an
// empty string if the response has none.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

// GenerateContent sends a request to the Gemini API to generate creative text
// content.
func (c *Client) GenerateContent(ctx context.Context, params GenerateContentParams) (*GenerateContentResponse, error) {
	if c.Model == "" {
		return nil, errors.New("model shouldn't be empty")
	}
	apiURL := defaultAPIURL
	if c.APIURL != "" {
		apiURL = c.APIURL
	}
	return request.Make[*GenerateContentResponse](ctx, request.Params{
		Method: http.MethodPost,
		URL:    apiURL + "/models/" + c.Model + ":generateContent",
		Headers: map[string]string{
			"x-goog-api-key": c.APIKey,
		},
		Body:       params,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
}
