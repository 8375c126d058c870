package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrGeneration matches every GenerationError with errors.Is.
var ErrGeneration = errors.New("content generation failed")

const (
	StepTitle = "title"
	StepPart1 = "part1"
	StepPart2 = "part2"
)

// GenerationError reports which of the three upstream calls failed.
type GenerationError struct {
	Step string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Request carries the website details the prompts are built from.
type Request struct {
	Keywords      []string
	StockCategory string
	Locations     []string
	PhoneNumber   string
	EmailAddress  string
	CompanyName   string
}

// Content is a generated post: a plain title and an embeddable HTML fragment.
type Content struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Client talks to an OpenAI compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewClient(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		client:  httpClient,
	}
}

// Generate runs the title, first half and second half requests in order.
// The first failure aborts the rest.
func (c *Client) Generate(ctx context.Context, req Request) (*Content, error) {
	keywords := strings.Join(req.Keywords, ", ")
	locations := strings.Join(req.Locations, ", ")
	contact := fmt.Sprintf("Phone: %s, Email: %s, Company: %s", req.PhoneNumber, req.EmailAddress, req.CompanyName)

	title, err := c.complete(ctx, titleSystemPrompt, fmt.Sprintf(
		"Create one blog post idea from one of these keywords: %s, and use one of these locations: %s. "+
			"It should suit long tail searches, be between 7 and 10 words long and be an uncommon, creative idea.",
		keywords, locations))
	if err != nil {
		return nil, &GenerationError{Step: StepTitle, Err: err}
	}
	title = cleanTitle(title)
	if title == "" {
		return nil, &GenerationError{Step: StepTitle, Err: errors.New("empty title")}
	}
	log.Printf("generator: title %q", title)

	part1, err := c.body(ctx, fmt.Sprintf(
		"Write the first half of a blog post titled %q. Start with a single <h1> containing the title, "+
			"then several sections with <h2> headings and <p> paragraphs. Aim for about 500 words. "+
			"The website it is going on: %s. Do not write a conclusion, this is only the first half.",
		title, contact))
	if err != nil {
		return nil, &GenerationError{Step: StepPart1, Err: err}
	}

	part2, err := c.body(ctx, fmt.Sprintf(
		"Continue the blog post titled %q in the category of %s with all new content. "+
			"Carry on directly from the first half below without repeating any of it, and finish with a "+
			"call to action under a heading of Conclusion. The website it is going on: %s.\n\nFirst half:\n%s",
		title, req.StockCategory, contact, part1))
	if err != nil {
		return nil, &GenerationError{Step: StepPart2, Err: err}
	}

	return &Content{Title: title, Content: part1 + "\n" + part2}, nil
}

func (c *Client) body(ctx context.Context, prompt string) (string, error) {
	raw, err := c.complete(ctx, bodySystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	fragment, err := toHTML(raw)
	if err != nil {
		return "", err
	}
	fragment = Sanitize(fragment)
	if fragment == "" {
		return "", errors.New("empty content")
	}
	return fragment, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	}
	blob, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := c.baseURL + "/v1/chat/completions"
	if strings.HasSuffix(c.baseURL, "/v1") {
		endpoint = c.baseURL + "/chat/completions"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty chat response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const titleSystemPrompt = "You come up with unique blog titles from the keywords you are given. " +
	"Reply with the title only and nothing else, in British English."

const bodySystemPrompt = "You are a content writer producing British English blog content as HTML. " +
	"Use <h1> for the title, <h2> for section headings and <p> for paragraphs. " +
	"Do not include any other HTML tags, document wrappers or metadata."

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
