package provider

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"

	"codebattle-server/domain"
)

const fetchConcurrency = 4

var DefaultSlugs = []string{
	"two-sum",
	"contains-duplicate",
	"valid-anagram",
	"missing-number",
	"single-number",
	"fizz-buzz",
	"palindrome-number",
}

// Catalog is the set of problems loaded at startup. It never changes after
// LoadCatalog returns, so Pick is safe for concurrent use.
type Catalog struct {
	problems []*domain.Problem
	fallback bool
}

// LoadCatalog fetches every slug concurrently. Slugs that fail are logged and
// skipped; if none load the catalog holds only the built-in Two Sum problem.
func LoadCatalog(ctx context.Context, source domain.ProblemProvider, slugs []string) *Catalog {
	var (
		mu     sync.Mutex
		loaded = make(map[string]*domain.Problem, len(slugs))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, slug := range slugs {
		g.Go(func() error {
			p, err := source.FetchProblem(ctx, slug)
			if err != nil {
				slog.Warn("problem not loaded", "slug", slug, "error", err)
				return nil
			}
			mu.Lock()
			loaded[slug] = p
			mu.Unlock()
			slog.Info("problem loaded", "slug", slug, "title", p.Title, "tests", len(p.TestCases))
			return nil
		})
	}
	_ = g.Wait()

	c := &Catalog{}
	for _, slug := range slugs {
		if p, ok := loaded[slug]; ok {
			c.problems = append(c.problems, p)
		}
	}
	if len(c.problems) == 0 {
		slog.Warn("no problems loaded, using fallback")
		c.problems = []*domain.Problem{Fallback()}
		c.fallback = true
	}
	return c
}

func NewCatalog(problems ...*domain.Problem) *Catalog {
	if len(problems) == 0 {
		return &Catalog{problems: []*domain.Problem{Fallback()}, fallback: true}
	}
	return &Catalog{problems: problems}
}

func (c *Catalog) Pick() *domain.Problem {
	return c.problems[rand.IntN(len(c.problems))]
}

// Len reports the number of problems Pick chooses from, the fallback included.
func (c *Catalog) Len() int {
	return len(c.problems)
}

// UsingFallback reports whether no problem could be fetched.
func (c *Catalog) UsingFallback() bool {
	return c.fallback
}

func Fallback() *domain.Problem {
	sig := Signatures["two-sum"]
	return &domain.Problem{
		Slug:        "two-sum",
		Title:       "Two Sum (Backup)",
		Description: "<p>Find two numbers that add up to target.</p>",
		TestCases: []domain.TestCase{
			{ID: 1, Input: "nums = [2,7,11,15], target = 9", Expected: "[0,1]"},
			{ID: 2, Input: "nums = [3,2,4], target = 6", Expected: "[1,2]"},
			{ID: 3, Input: "nums = [3,3], target = 6", Expected: "[0,1]"},
		},
		Signature:   sig,
		StarterCode: StarterCode(sig),
	}
}
