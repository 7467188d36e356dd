// Package ai provides operator-invoked draft enhancement backed by the
// Anthropic API. The autonomous loop never calls into this package: drafts are
// created as placeholders by remediation and evolution, and an operator may
// choose to have the content written out via `aidd drafts enhance`.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/DerianAndre/aidd.md-sub000/internal/types"
)

const (
	// ModelSonnet is the default model for draft writing.
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient alternative for short drafts.
	ModelHaiku = "claude-3-5-haiku-20241022"

	// maxResponseTokens bounds a single enhancement response.
	maxResponseTokens = 4096

	// maxContextChars bounds how much session context goes into the prompt.
	maxContextChars = 8000
)

// DefaultModel returns the enhancement model, honoring the AIDD_MODEL
// environment variable.
func DefaultModel() string {
	if model := os.Getenv("AIDD_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// RetryConfig holds retry configuration for API calls.
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retries (default: 3)
	InitialBackoff    time.Duration // Initial backoff duration (default: 1s)
	MaxBackoff        time.Duration // Maximum backoff duration (default: 30s)
	BackoffMultiplier float64       // Backoff multiplier (default: 2.0)
	Timeout           time.Duration // Per-request timeout (default: 60s)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
	}
}

// Enhancer writes real content for placeholder drafts.
type Enhancer struct {
	client *anthropic.Client
	model  string
	retry  RetryConfig
}

// Config holds enhancer configuration.
type Config struct {
	APIKey string // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model  string // Model to use (default: DefaultModel())
	Retry  RetryConfig
}

// NewEnhancer creates a draft enhancer.
func NewEnhancer(cfg *Config) (*Enhancer, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Enhancer{
		client: &client,
		model:  model,
		retry:  retry,
	}, nil
}

// EnhanceDraft asks the model to write the draft's content. Session and
// observations are optional context; pass nil when the draft has none. The
// returned string is the markdown document body, ready to store on the draft.
func (e *Enhancer) EnhanceDraft(ctx context.Context, draft *types.Draft, session *types.Session, observations []*types.Observation) (string, error) {
	if draft == nil {
		return "", fmt.Errorf("draft is required")
	}

	prompt := buildEnhancePrompt(draft, session, observations)

	var response *anthropic.Message
	err := e.retryWithBackoff(ctx, "draft_enhancement", func(attemptCtx context.Context) error {
		resp, apiErr := e.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(e.model),
			MaxTokens: maxResponseTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	content := stripFences(text)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("model returned empty content for draft %s", draft.ID)
	}
	return content, nil
}

// categoryGuidance steers the document shape per framework category.
var categoryGuidance = map[types.DraftCategory]string{
	types.CategoryRules:     "a concise rule statement: what to always or never do, with a one-paragraph rationale",
	types.CategoryKnowledge: "a knowledge-base entry: what was learned, the evidence, and when it applies",
	types.CategorySkills:    "a skill description: the technique, the situations it fits, and a worked example",
	types.CategoryWorkflows: "a workflow document: the ordered steps, their artifacts, and exit criteria",
}

// buildEnhancePrompt assembles the enhancement prompt from the draft and
// whatever session context is available.
func buildEnhancePrompt(draft *types.Draft, session *types.Session, observations []*types.Observation) string {
	var b strings.Builder

	guidance := categoryGuidance[draft.Category]
	if guidance == "" {
		guidance = "a short, practical framework document"
	}

	fmt.Fprintf(&b, `You are writing a framework document for an AI-assisted development workspace.

Document title: %s
Category: %s (write %s)
`, draft.Title, draft.Category, guidance)

	if draft.ArtifactType != "" {
		fmt.Fprintf(&b, "Artifact type: %s\n", draft.ArtifactType)
	}
	if strings.TrimSpace(draft.Content) != "" {
		fmt.Fprintf(&b, "\nExisting placeholder content to improve on:\n%s\n", truncateTail(draft.Content, maxContextChars/2))
	}

	if session != nil {
		fmt.Fprintf(&b, "\nSession context:\nBranch: %s\nTask: %s\n", session.Branch, session.Input)
		if session.Output != "" {
			fmt.Fprintf(&b, "Outcome: %s\n", truncateTail(session.Output, maxContextChars/2))
		}
		if len(session.Decisions) > 0 {
			fmt.Fprintf(&b, "Decisions: %s\n", strings.Join(session.Decisions, "; "))
		}
		if len(session.FilesModified) > 0 {
			fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(session.FilesModified, ", "))
		}
	}

	if len(observations) > 0 {
		b.WriteString("\nObservations from the session:\n")
		budget := maxContextChars / len(observations)
		for _, obs := range observations {
			if obs.Narrative == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s\n", truncateTail(obs.Narrative, budget))
		}
	}

	b.WriteString(`
Write the complete markdown document. Start with a level-1 heading matching the
document title. Be specific and actionable; do not pad. Respond with ONLY the
markdown document, no preamble and no code fences.`)

	return b.String()
}

// stripFences removes a surrounding markdown code fence if the model ignored
// the no-fences instruction.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (``` or ```markdown) and a closing fence.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// truncateTail keeps the last maxLen bytes of s. The tail of session output
// carries the conclusions; the head is usually setup noise.
func truncateTail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}

// retryWithBackoff executes an operation with retry and exponential backoff.
// Each invocation of the CLI is its own process, so failure state is not
// carried across calls; persistent API trouble surfaces to the operator
// directly instead of through a breaker.
func (e *Enhancer) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := e.retry.InitialBackoff

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if attempt > 0 {
				fmt.Printf("AI API %s succeeded after %d retries\n", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !isRetriableError(err) {
			fmt.Fprintf(os.Stderr, "AI API %s failed with non-retriable error: %v\n", operation, err)
			return err
		}
		if attempt == e.retry.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: context canceled: %w", operation, ctx.Err())
		}

		fmt.Printf("AI API %s failed (attempt %d/%d), retrying in %v: %v\n",
			operation, attempt+1, e.retry.MaxRetries+1, backoff, err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * e.retry.BackoffMultiplier)
			if backoff > e.retry.MaxBackoff {
				backoff = e.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, e.retry.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is transient.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	// Rate limits are retriable.
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	// Server errors are retriable.
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "service unavailable") {
		return true
	}

	// Network trouble is retriable.
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") {
		return true
	}

	// Remaining client errors won't succeed on retry.
	return false
}
