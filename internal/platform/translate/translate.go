// Package translate renders handoff text into a caregiver's preferred
// language using a hosted Gemini model.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"google.golang.org/genai"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Supported lists the target languages offered to caregivers.
var Supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.Portuguese,
	language.SimplifiedChinese,
	language.Vietnamese,
	language.Korean,
	language.Filipino,
	language.Arabic,
	language.Hindi,
	language.Russian,
}

var matcher = language.NewMatcher(Supported)

// ParseLanguage resolves a caller-supplied code to a supported tag.
func ParseLanguage(code string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	// The matcher falls back to its first tag with High confidence for
	// languages it knows nothing about, so the base language must agree too.
	_, idx, conf := matcher.Match(tag)
	want, _ := tag.Base()
	got, _ := Supported[idx].Base()
	if conf < language.High || want != got {
		return language.Und, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return Supported[idx], nil
}

type Translator interface {
	Translate(ctx context.Context, text string, target language.Tag) (string, error)
}

type generateFunc func(ctx context.Context, prompt string) (string, error)

type GenAITranslator struct {
	generate generateFunc
}

func NewGenAITranslator(ctx context.Context, apiKey, model string) (*GenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}

	return &GenAITranslator{
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

func (t *GenAITranslator) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	out, err := t.generate(ctx, buildPrompt(text, target))
	if err != nil {
		return "", fmt.Errorf("GenAI translate failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("GenAI returned an empty translation")
	}
	return out, nil
}

func buildPrompt(text string, target language.Tag) string {
	var b strings.Builder
	b.WriteString("Translate the following caregiver handoff note into ")
	b.WriteString(display.English.Tags().Name(target))
	b.WriteString(".\nKeep medication names, doses and numbers exactly as written. ")
	b.WriteString("Keep the line structure. Return only the translated text.\n\n")
	b.WriteString(text)
	return b.String()
}
