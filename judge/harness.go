package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"text/template"

	"codebattle-server/domain"
)

// The harness reads a per-run marker from stdin before the submission is
// loaded, then prints the marker and a JSON array of outcomes as the last two
// lines of stdout. Anything the submission prints comes before the marker.
// Failures raised by one case are reported as that case's actual value.
var harnessTemplate = template.Must(template.New("harness").Parse(`import json
import re
import ast
import sys

_MARK = sys.stdin.readline().strip()

{{.Code}}

def _split_args(text):
    if "=" not in text:
        return [text]
    parts = re.split(r",\s*(?=[A-Za-z_]\w*\s*=)", text)
    return [p.split("=", 1)[1].strip() for p in parts]

def _run():
    cases = json.loads({{.Cases}})
    try:
        sol = Solution()
    except Exception as e:
        _report({"error": "Init Error: " + str(e)})
        return

    results = []
    for case in cases:
        inp = case["input_text"]
        exp = case["expected_text"]
        try:
            args = [ast.literal_eval(p) for p in _split_args(inp)]
            expected = ast.literal_eval(exp)
            actual = getattr(sol, {{.Function}})(*args)
            results.append({"id": case["id"], "passed": actual == expected,
                            "input": inp, "expected": str(expected), "actual": str(actual)})
        except Exception as e:
            results.append({"id": case["id"], "passed": False,
                            "input": inp, "expected": exp, "actual": str(e)})
    _report(results)

def _report(payload):
    sys.stdout.write("\n" + _MARK + "\n" + json.dumps(payload) + "\n")
    sys.stdout.flush()

if __name__ == "__main__":
    _run()
`))

// Harness wraps a submission in a Python script that runs every test case of
// the problem against Solution.<fn>.
func Harness(code string, p *domain.Problem) (string, error) {
	cases, err := json.Marshal(p.TestCases)
	if err != nil {
		return "", fmt.Errorf("encode test cases: %w", err)
	}

	var buf bytes.Buffer
	err = harnessTemplate.Execute(&buf, struct {
		Code     string
		Cases    string
		Function string
	}{
		Code:     code,
		Cases:    strconv.Quote(string(cases)),
		Function: strconv.Quote(p.Signature.Function),
	})
	if err != nil {
		return "", fmt.Errorf("render harness: %w", err)
	}
	return buf.String(), nil
}
