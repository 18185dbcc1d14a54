package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"codebattle-server/domain"
)

const DefaultBaseURL = "https://alfa-leetcode-api.onrender.com"

// Signatures maps a problem slug to the Solution method the judge harness calls.
// Problems without an entry cannot be judged and are skipped.
var Signatures = map[string]domain.Signature{
	"two-sum":            {Function: "twoSum", Arity: 2},
	"contains-duplicate": {Function: "containsDuplicate", Arity: 1},
	"valid-anagram":      {Function: "isAnagram", Arity: 2},
	"missing-number":     {Function: "missingNumber", Arity: 1},
	"single-number":      {Function: "singleNumber", Arity: 1},
	"fizz-buzz":          {Function: "fizzBuzz", Arity: 1},
	"palindrome-number":  {Function: "isPalindrome", Arity: 1},
	"plus-one":           {Function: "plusOne", Arity: 1},
}

var (
	examplePattern = regexp.MustCompile(`(?i)Input:?</strong>\s*([\s\S]*?)\s*(?:<br>|\n)\s*<strong>\s*Output:?</strong>\s*([\s\S]*?)\s*(?:<br>|\n|$)`)
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
)

// LeetCode fetches problems from an alfa-leetcode-api deployment and scrapes
// the worked examples out of the question HTML.
type LeetCode struct {
	baseURL string
	client  *http.Client
}

func NewLeetCode(baseURL string, timeout time.Duration) *LeetCode {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &LeetCode{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type questionResponse struct {
	Title    string `json:"questionTitle"`
	Question string `json:"question"`
}

func (l *LeetCode) FetchProblem(ctx context.Context, slug string) (*domain.Problem, error) {
	sig, ok := Signatures[slug]
	if !ok {
		return nil, fmt.Errorf("%w: no signature for %q", domain.ErrProblemNotFound, slug)
	}

	endpoint := l.baseURL + "/select?titleSlug=" + url.QueryEscape(slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", slug, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrProblemNotFound, slug, resp.StatusCode)
	}

	var q questionResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode %s: %w", slug, err)
	}

	cases := ParseExamples(q.Question)
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: no examples in %s", domain.ErrProblemNotFound, slug)
	}

	title := q.Title
	if title == "" {
		title = "Unknown"
	}

	return &domain.Problem{
		Slug:        slug,
		Title:       title,
		Description: q.Question,
		TestCases:   cases,
		Signature:   sig,
		StarterCode: StarterCode(sig),
	}, nil
}

// ParseExamples extracts Input/Output pairs from question HTML. Ids start at 1.
func ParseExamples(question string) []domain.TestCase {
	matches := examplePattern.FindAllStringSubmatch(question, -1)
	cases := make([]domain.TestCase, 0, len(matches))
	for i, m := range matches {
		cases = append(cases, domain.TestCase{
			ID:       i + 1,
			Input:    clean(m[1]),
			Expected: clean(m[2]),
		})
	}
	return cases
}

func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

func StarterCode(sig domain.Signature) string {
	args := make([]string, sig.Arity)
	for i := range args {
		args[i] = fmt.Sprintf("arg%d", i)
	}
	params := "self"
	if len(args) > 0 {
		params += ", " + strings.Join(args, ", ")
	}
	return fmt.Sprintf("class Solution:\n    def %s(%s):\n        # Write your code here\n        pass", sig.Function, params)
}
