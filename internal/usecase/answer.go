package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/phuslu/log"

	"pdfqa/internal/domain"
	"pdfqa/internal/port"
)

//go:embed templates/answer_prompt.txt
var answerPromptText string

var answerPrompt = template.Must(template.New("answer").Parse(answerPromptText))

var (
	leadingFence  = regexp.MustCompile("^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

type promptSource struct {
	ChunkUID   string
	PageNumber int
	Text       string
}

// AnswerUseCase asks the model to answer from retrieved chunks and rejects
// any answer that cites a chunk that was not retrieved.
type AnswerUseCase struct {
	llm     port.LLM
	timeout time.Duration
	logger  *log.Logger
}

// NewAnswerUseCase creates a new answer use case.
func NewAnswerUseCase(llm port.LLM, timeout time.Duration, logger *log.Logger) *AnswerUseCase {
	return &AnswerUseCase{
		llm:     llm,
		timeout: timeout,
		logger:  logger,
	}
}

// Answer makes at most one model call. With no usable results it returns the
// fallback answer without calling the model. Guardrail failures are returned
// as *domain.GuardrailError.
func (u *AnswerUseCase) Answer(ctx context.Context, question string, results []domain.SearchResult) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyInput
	}

	usable := usableResults(results)
	if len(usable) == 0 {
		return &domain.Answer{Answer: domain.FallbackAnswer, Citations: []domain.Citation{}}, nil
	}

	prompt, err := BuildPrompt(question, usable)
	if err != nil {
		return nil, err
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	allowed := make(map[string]bool, len(usable))
	for _, r := range usable {
		allowed[r.ChunkUID] = true
	}

	answer, err := ParseAnswer(raw, allowed)
	if err != nil {
		u.logger.Warn().
			Err(err).
			Str("model", u.llm.ModelName()).
			Int("sources", len(usable)).
			Msg("answer rejected")
		return nil, err
	}

	u.logger.Info().
		Str("model", u.llm.ModelName()).
		Int("sources", len(usable)).
		Int("citations", len(answer.Citations)).
		Dur("duration", time.Since(start)).
		Msg("answer generated")

	return answer, nil
}

// BuildPrompt renders the grounding prompt. Diagnostic results are skipped.
func BuildPrompt(question string, results []domain.SearchResult) (string, error) {
	usable := usableResults(results)
	sources := make([]promptSource, 0, len(usable))
	for _, r := range usable {
		sources = append(sources, promptSource{
			ChunkUID:   r.ChunkUID,
			PageNumber: r.PageNumber,
			Text:       strings.ReplaceAll(strings.TrimSpace(r.Text), "\n", " "),
		})
	}

	exampleID := "docid_12"
	if len(sources) > 0 {
		exampleID = sources[0].ChunkUID
	}

	var buf bytes.Buffer
	err := answerPrompt.Execute(&buf, struct {
		Fallback  string
		ExampleID string
		Question  string
		Sources   []promptSource
	}{
		Fallback:  domain.FallbackAnswer,
		ExampleID: exampleID,
		Question:  question,
		Sources:   sources,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ExtractJSON pulls the JSON object out of raw model output, tolerating code
// fences and prose around it.
func ExtractJSON(raw string) (json.RawMessage, error) {
	t := strings.TrimSpace(raw)
	if t == "" {
		return nil, domain.NewGuardrailError(domain.KindEmpty, "model returned empty text", raw)
	}

	t = leadingFence.ReplaceAllString(t, "")
	t = strings.TrimSpace(trailingFence.ReplaceAllString(t, ""))

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start == -1 || end <= start {
		return nil, domain.NewGuardrailError(domain.KindParse, "model did not return JSON", raw)
	}

	candidate := t[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, domain.NewGuardrailError(domain.KindParse, "model returned invalid JSON", raw)
	}
	return json.RawMessage(candidate), nil
}

// ParseAnswer extracts and validates the model's answer object. Every
// citation must name a chunk_uid in allowed. The result is normalized into
// domain.Answer: a numeric-string page becomes an int and keys other than
// answer and citations are dropped. Field values are otherwise unchanged.
func ParseAnswer(raw string, allowed map[string]bool) (*domain.Answer, error) {
	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, domain.NewGuardrailError(domain.KindShape, "top-level JSON is not an object", raw)
	}

	answerRaw, ok := obj["answer"]
	if !ok {
		return nil, domain.NewGuardrailError(domain.KindShape, "missing key: answer", raw)
	}
	citationsRaw, ok := obj["citations"]
	if !ok {
		return nil, domain.NewGuardrailError(domain.KindShape, "missing key: citations", raw)
	}

	var answer domain.Answer
	if err := json.Unmarshal(answerRaw, &answer.Answer); err != nil || isNull(answerRaw) {
		return nil, domain.NewGuardrailError(domain.KindShape, "answer must be a string", raw)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(citationsRaw, &items); err != nil || isNull(citationsRaw) {
		return nil, domain.NewGuardrailError(domain.KindShape, "citations must be a list", raw)
	}

	answer.Citations = make([]domain.Citation, 0, len(items))
	for i, item := range items {
		c, err := parseCitation(item)
		if err != nil {
			return nil, domain.NewGuardrailError(domain.KindShape, fmt.Sprintf("citation %d: %v", i, err), raw)
		}
		if !allowed[c.ChunkID] {
			return nil, domain.NewGuardrailError(domain.KindCitation, fmt.Sprintf("invalid citation chunk_id: %s", c.ChunkID), raw)
		}
		answer.Citations = append(answer.Citations, c)
	}

	return &answer, nil
}

func parseCitation(item json.RawMessage) (domain.Citation, error) {
	var c domain.Citation

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return c, fmt.Errorf("must be an object")
	}

	for _, key := range []string{"chunk_id", "page", "snippet"} {
		if _, ok := fields[key]; !ok {
			return c, fmt.Errorf("must contain chunk_id, page, snippet")
		}
	}

	if err := json.Unmarshal(fields["chunk_id"], &c.ChunkID); err != nil {
		return c, fmt.Errorf("chunk_id must be a string")
	}
	if err := json.Unmarshal(fields["snippet"], &c.Snippet); err != nil {
		return c, fmt.Errorf("snippet must be a string")
	}

	page, err := parsePage(fields["page"])
	if err != nil {
		return c, err
	}
	c.Page = page

	return c, nil
}

// parsePage accepts an integral number or a numeric string.
func parsePage(raw json.RawMessage) (int, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && !isNull(raw) {
		if n != float64(int(n)) {
			return 0, fmt.Errorf("page must be an integer")
		}
		return int(n), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}

	return 0, fmt.Errorf("page must be an integer")
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func usableResults(results []domain.SearchResult) []domain.SearchResult {
	usable := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.IsDiagnostic() || r.ChunkUID == "" {
			continue
		}
		usable = append(usable, r)
	}
	return usable
}
