// Package joke fetches jokes from the Sv443 JokeAPI.
package joke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const defaultBaseURL = "https://v2.jokeapi.dev"

// Categories the API accepts. "any" is the wildcard.
var validCategories = map[string]bool{
	"any":         true,
	"misc":        true,
	"programming": true,
	"dark":        true,
	"pun":         true,
	"spooky":      true,
	"christmas":   true,
}

// Joke is one API response. Single jokes carry Joke; two-part jokes carry
// Setup and Delivery.
type Joke struct {
	Error    bool   `json:"error"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Joke     string `json:"joke"`
	Setup    string `json:"setup"`
	Delivery string `json:"delivery"`
}

// Categories returns the accepted category names, sorted.
func Categories() []string {
	out := make([]string, 0, len(validCategories))
	for c := range validCategories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// InvalidCategoryError lists the rejected category tokens.
type InvalidCategoryError struct {
	Categories []string
}

func (e *InvalidCategoryError) Error() string {
	joined := strings.Join(e.Categories, ", ")
	if len(e.Categories) > 1 {
		return fmt.Sprintf("Invalid joke categories '%s'", joined)
	}
	return fmt.Sprintf("Invalid joke category '%s'", joined)
}

// UserMessage makes the category rejection its own user-facing reply.
func (e *InvalidCategoryError) UserMessage() string { return e.Error() }

// ValidateCategories lowercases and checks the requested categories,
// returning them normalized. With no input the wildcard is used.
func ValidateCategories(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{"any"}, nil
	}
	var cats, bad []string
	for _, a := range args {
		c := strings.ToLower(strings.TrimSpace(a))
		if c == "" {
			continue
		}
		if !validCategories[c] {
			bad = append(bad, c)
			continue
		}
		cats = append(cats, c)
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, &InvalidCategoryError{Categories: bad}
	}
	if len(cats) == 0 {
		cats = []string{"any"}
	}
	return cats, nil
}

// Client talks to the joke API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithBase is for tests pointing at a local server.
func NewClientWithBase(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc}
}

// Fetch requests one joke from the given (already validated) categories.
func (c *Client) Fetch(ctx context.Context, categories []string) (*Joke, error) {
	path := strings.Join(categories, ",")
	if path == "" {
		path = "any"
	}
	url := fmt.Sprintf("%s/joke/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("joke api: %w", err)
	}
	defer resp.Body.Close()

	var joke Joke
	if err := json.NewDecoder(resp.Body).Decode(&joke); err != nil {
		return nil, fmt.Errorf("decoding joke response: %w", err)
	}
	if joke.Error {
		return nil, fmt.Errorf("joke api error: %s", joke.Message)
	}
	return &joke, nil
}
