// Package narrator rewrites fixed draft summaries into natural language with
// a chat model. Callers must treat it as best effort.
package narrator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

//go:embed template/summary_prompt.txt
var summarySystemPrompt string

// Length controls how verbose the rewritten summary is.
type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

var lengthHints = map[Length]string{
	Short:  "At most three lines.",
	Medium: "Up to six lines with one short greeting.",
	Long:   "Up to ten lines; you may add a closing question asking for confirmation.",
}

// ErrEmptyRewrite is returned when the model answers with no text.
var ErrEmptyRewrite = errors.New("empty rewrite")

// Rewriter turns a fixed summary into a natural message.
type Rewriter interface {
	GenerateSummaryText(ctx context.Context, userID, summary string, length Length) (string, error)
}

// ChatRewriter is a Rewriter backed by an eino chat model.
type ChatRewriter struct {
	model     model.BaseChatModel
	modelName string
	handlers  []einocb.Handler
}

// Option configures a ChatRewriter.
type Option func(*ChatRewriter)

// WithModelName names the model for usage cost logging.
func WithModelName(name string) Option {
	return func(r *ChatRewriter) { r.modelName = name }
}

// WithCallbacks attaches eino callback handlers to every rewrite.
func WithCallbacks(h ...einocb.Handler) Option {
	return func(r *ChatRewriter) { r.handlers = append(r.handlers, h...) }
}

func NewChatRewriter(m model.BaseChatModel, opts ...Option) *ChatRewriter {
	r := &ChatRewriter{model: m}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ChatRewriter) GenerateSummaryText(ctx context.Context, userID, summary string, length Length) (string, error) {
	if r == nil || r.model == nil {
		return "", errors.New("narrator: no chat model configured")
	}
	hint, ok := lengthHints[length]
	if !ok {
		length, hint = Medium, lengthHints[Medium]
	}

	if len(r.handlers) > 0 {
		ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
			Name:      "SummaryRewriter",
			Type:      r.modelName,
			Component: components.ComponentOfChatModel,
		}, r.handlers...)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage("{{.Summary}}"),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"Length":     string(length),
		"LengthHint": hint,
		"Summary":    summary,
	})
	if err != nil {
		return "", fmt.Errorf("summary prompt render: %w", err)
	}

	out, err := r.model.Generate(ctx, msgs)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("summary rewrite failed")
		return "", fmt.Errorf("generate summary: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", ErrEmptyRewrite
	}
	r.logUsage(userID, out)
	return strings.TrimSpace(out.Content), nil
}

func (r *ChatRewriter) logUsage(userID string, out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	inC, outC, totalC := ComputeCost(usage, ResolvePricing(r.modelName))
	logx.Debug().
		Str("user_id", userID).
		Str("model", r.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ Rewriter = (*ChatRewriter)(nil)
