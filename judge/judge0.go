package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"codebattle-server/domain"
)

const (
	DefaultURL        = "https://ce.judge0.com"
	DefaultLanguageID = 71 // Python 3
)

// Judge0 runs submissions synchronously on a Judge0 instance.
type Judge0 struct {
	endpoint   string
	languageID int
	client     *http.Client
}

func NewJudge0(baseURL string, languageID int) *Judge0 {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if languageID <= 0 {
		languageID = DefaultLanguageID
	}
	return &Judge0{
		endpoint:   strings.TrimRight(baseURL, "/") + "/submissions?base64_encoded=false&wait=true",
		languageID: languageID,
		client:     &http.Client{},
	}
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type verdict struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Execute returns an error only when Judge0 could not be reached or answered
// with something other than a verdict. Broken submissions are reported in the
// result.
func (j *Judge0) Execute(ctx context.Context, code string, p *domain.Problem) (domain.ExecutionResult, error) {
	script, err := Harness(code, p)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	mark := uuid.NewString()
	body, err := json.Marshal(submission{SourceCode: script, LanguageID: j.languageID, Stdin: mark + "\n"})
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ExecutionResult{}, fmt.Errorf("judge0 returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var v verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("decode verdict: %w", err)
	}
	return interpret(v, mark), nil
}

// interpret reads the harness report that follows the last marker line.
// Output without a marker never counts as test results.
func interpret(v verdict, mark string) domain.ExecutionResult {
	if report, ok := afterMark(v.Stdout, mark); ok {
		out := strings.TrimSpace(report)
		var tests []domain.TestOutcome
		if err := json.Unmarshal([]byte(out), &tests); err == nil {
			return domain.ExecutionResult{Tests: tests}
		}
		var failed struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(out), &failed); err == nil && failed.Error != "" {
			return domain.ExecutionResult{Error: failed.Error}
		}
		return domain.ExecutionResult{Error: "Output Error", Raw: v.Stdout}
	}

	switch {
	case v.Stderr != "":
		return domain.ExecutionResult{Error: v.Stderr}
	case v.CompileOutput != "":
		return domain.ExecutionResult{Error: v.CompileOutput}
	case v.Status.Description != "" && v.Status.Description != "Accepted":
		return domain.ExecutionResult{Error: v.Status.Description}
	case strings.TrimSpace(v.Stdout) != "":
		return domain.ExecutionResult{Error: "Output Error", Raw: v.Stdout}
	default:
		return domain.ExecutionResult{Error: "Unknown Error"}
	}
}

func afterMark(stdout, mark string) (string, bool) {
	if mark == "" {
		return "", false
	}
	i := strings.LastIndex(stdout, "\n"+mark+"\n")
	if i < 0 {
		return "", false
	}
	return stdout[i+len(mark)+2:], true
}
