package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jbrukh/bayesian"
	"github.com/pkg/errors"
)

// prepareDescription lowercases a bank description and splits it into the
// terms fed to the classifier. Separator noise like '*' would otherwise glue
// merchant names together.
func prepareDescription(desc string) []string {
	desc = strings.ToLower(desc)
	desc = strings.ReplaceAll(desc, "*", " ")
	return strings.Fields(desc)
}

// categorizer wraps a TF-IDF Bayesian classifier trained on rows a human has
// already reviewed and categorized.
type categorizer struct {
	classes []bayesian.Class
	cl      *bayesian.Classifier
}

// buildCategorizer trains on reviewed, categorized records. Returns nil if
// the ledger does not yet contain at least two categories to learn from.
func buildCategorizer(recs []Record) *categorizer {
	seen := make(map[string]bool)
	for _, r := range recs {
		if r.Reviewed && len(r.Category) > 0 && r.Category != categoryTransfer {
			seen[r.Category] = true
		}
	}
	if len(seen) < 2 {
		return nil
	}

	c := &categorizer{}
	for cat := range seen {
		c.classes = append(c.classes, bayesian.Class(cat))
	}
	sort.Slice(c.classes, func(i, j int) bool { return c.classes[i] < c.classes[j] })

	c.cl = bayesian.NewClassifierTfIdf(c.classes...)
	for _, r := range recs {
		if r.Reviewed && seen[r.Category] {
			c.cl.Learn(prepareDescription(r.Description), bayesian.Class(r.Category))
		}
	}
	c.cl.ConvertTermsFreqToTfIdf()
	return c
}

// categoryScore pairs a category with a 0-1 confidence.
type categoryScore struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// suggest returns up to max categories for a description with softmax
// normalized confidence scores, best first.
func (c *categorizer) suggest(desc string, max int) []categoryScore {
	scores, _, _ := c.cl.LogScores(prepareDescription(desc))
	if len(scores) == 0 {
		return nil
	}

	type pair struct {
		score float64
		pos   int
	}
	pairs := make([]pair, 0, len(scores))
	maxScore := scores[0]
	for pos, score := range scores {
		pairs = append(pairs, pair{score, pos})
		if score > maxScore {
			maxScore = score
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	var sumExp float64
	exp := make([]float64, len(pairs))
	for i, pr := range pairs {
		exp[i] = math.Exp(pr.score - maxScore)
		sumExp += exp[i]
	}

	if max > len(pairs) {
		max = len(pairs)
	}
	result := make([]categoryScore, 0, max)
	for i := 0; i < max; i++ {
		result = append(result, categoryScore{
			Category:   string(c.classes[pairs[i].pos]),
			Confidence: exp[i] / sumExp,
		})
	}
	return result
}

// reviewTransaction is one transaction in the AI review request.
type reviewTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	Account     string          `json:"account"`
	Categories  []categoryScore `json:"categories,omitempty"`
}

type reviewData struct {
	Transactions  []reviewTransaction `json:"transactions"`
	AllCategories []string            `json:"all_categories"`
}

// aiDecision is the AI's categorization for one transaction.
type aiDecision struct {
	SuggestedCategories []categoryScore `json:"suggested_categories"`
	Source              string          `json:"source"`
	Reasoning           string          `json:"reasoning,omitempty"`
}

type aiResponse struct {
	Decisions []aiDecision `json:"decisions"`
}

func buildAIPrompt(data reviewData) string {
	prompt := `You are a financial transaction categorization expert reviewing
personal bank and credit card transactions.

Each transaction may include predictions from a Bayesian classifier trained on
historical data ("categories", confidence 0-1, best first). Trust a
high-confidence prediction only when the description clearly names a merchant
or service; for ambiguous descriptions (codes, "PAYMENT", "ACH TRANSFER"),
rely on your own analysis.

Return a JSON object, decisions in the SAME ORDER as the input transactions:

{
  "decisions": [
    {
      "suggested_categories": [
        {"category": "Food: Groceries", "confidence": 0.85},
        {"category": "Shopping: General", "confidence": 0.15}
      ],
      "source": "ai",
      "reasoning": "Clear grocery merchant."
    }
  ]
}

Rules:
- 1-3 suggestions per decision, sorted by confidence descending
- every category must come from "all_categories"
- "source" is "ai" if top confidence >= 0.7, otherwise "uncertain"
- keep reasoning under 15 words
- exactly one decision per input transaction

Transaction data:

`
	encoded, _ := json.MarshalIndent(data, "", "  ")
	return prompt + string(encoded) + "\n\nNow generate the JSON response:"
}

// aiTimeout bounds each Claude call. On timeout or error the affected batch
// falls back to categoryNeedsReview rather than blocking the run.
const aiTimeout = 2 * time.Minute

// callClaude sends one batch for categorization and parses the decision JSON
// out of the response text.
func callClaude(ctx context.Context, apiKey, model string, data reviewData) (aiResponse, error) {
	var empty aiResponse
	if len(apiKey) == 0 {
		return empty, errors.New("AI API key not set in config or ANTHROPIC_API_KEY")
	}
	if len(model) == 0 {
		model = "claude-sonnet-4-5-20250929"
	}

	ctx, cancel := context.WithTimeout(ctx, aiTimeout)
	defer cancel()

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildAIPrompt(data))),
		},
	})
	if err != nil {
		return empty, errors.Wrap(err, "claude API call")
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	// The model may wrap the JSON in markdown fences.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 {
		return empty, errors.Errorf("no JSON found in response: %s", text)
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return empty, errors.Wrapf(err, "parse decision JSON: %s", text[start:end+1])
	}
	return resp, nil
}

// categorizeRecords runs the three categorization stages over uncategorized
// rows: rules, then Bayesian auto-assign above the confidence threshold,
// then Claude for whatever is left. Returns how many rows each stage set.
func categorizeRecords(ctx context.Context, recs []Record, rs ruleSet, cfg *config) (ruled, bayes, ai int) {
	ruledIdx := applyRules(recs, rs)
	// Rules are hand-written by the user, so their output counts as reviewed.
	for _, i := range ruledIdx {
		recs[i].Reviewed = true
	}
	ruled = len(ruledIdx)

	cat := buildCategorizer(recs)

	var pending []int
	for i := range recs {
		if len(recs[i].Category) > 0 {
			continue
		}
		if cat != nil {
			if hits := cat.suggest(recs[i].Description, 1); len(hits) > 0 &&
				hits[0].Confidence >= cfg.BayesThreshold {
				recs[i].Category = hits[0].Category
				bayes++
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 || !cfg.AI.Enabled {
		for _, i := range pending {
			recs[i].Category = categoryNeedsReview
		}
		return ruled, bayes, 0
	}

	for start := 0; start < len(pending); start += cfg.AIBatchSize {
		end := start + cfg.AIBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		data := reviewData{AllCategories: cfg.Categories}
		for _, i := range batch {
			r := recs[i]
			rt := reviewTransaction{
				Date:        r.Date.Format(stamp),
				Description: r.Description,
				Amount:      r.Amount,
				Account:     r.Account,
			}
			if cat != nil {
				rt.Categories = cat.suggest(r.Description, 5)
			}
			data.Transactions = append(data.Transactions, rt)
		}

		resp, err := callClaude(ctx, cfg.AI.APIKey, cfg.AI.Model, data)
		if err != nil || len(resp.Decisions) != len(batch) {
			if err != nil {
				log.Printf("Warning: AI batch failed, falling back to %q: %v", categoryNeedsReview, err)
			} else {
				log.Printf("Warning: AI returned %d decisions for %d transactions, falling back",
					len(resp.Decisions), len(batch))
			}
			for _, i := range batch {
				recs[i].Category = categoryNeedsReview
			}
			continue
		}

		for j, decision := range resp.Decisions {
			i := batch[j]
			if len(decision.SuggestedCategories) == 0 {
				recs[i].Category = categoryNeedsReview
				continue
			}
			sort.Slice(decision.SuggestedCategories, func(a, b int) bool {
				return decision.SuggestedCategories[a].Confidence > decision.SuggestedCategories[b].Confidence
			})
			recs[i].Category = decision.SuggestedCategories[0].Category
			ai++
		}
	}
	return ruled, bayes, ai
}

// runCategorize is the `categorize` subcommand.
func runCategorize(cfg *config) error {
	recs, _, err := loadLedger(cfg.MasterPath)
	if err != nil {
		return err
	}
	rs, err := loadRules(cfg.RulesPath)
	if err != nil {
		return err
	}

	var uncategorized int
	for _, r := range recs {
		if len(r.Category) == 0 {
			uncategorized++
		}
	}
	if uncategorized == 0 {
		fmt.Println("No uncategorized transactions found.")
		return nil
	}
	fmt.Printf("Categorizing %d transaction(s)...\n", uncategorized)

	ruled, bayes, ai := categorizeRecords(context.Background(), recs, rs, cfg)
	fmt.Printf("  rules:    %d\n  bayesian: %d\n  AI:       %d\n  left for review: %d\n",
		ruled, bayes, ai, uncategorized-ruled-bayes-ai)

	return saveLedger(cfg.MasterPath, recs)
}
