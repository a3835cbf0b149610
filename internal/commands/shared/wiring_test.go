package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/kazuyaegusa/deskautomata/internal/config"
)

func TestUnconfiguredPlatform_AllMethodsReturnSentinelError(t *testing.T) {
	p := unconfiguredPlatform{}
	ctx := context.Background()

	if _, err := p.FrontmostApp(ctx); !errors.Is(err, errNoPlatform) {
		t.Errorf("FrontmostApp: expected errNoPlatform, got %v", err)
	}
	if _, err := p.Screenshot(ctx, "cap"); !errors.Is(err, errNoPlatform) {
		t.Errorf("Screenshot: expected errNoPlatform, got %v", err)
	}
	if _, err := p.ElementAt(ctx, 10, 20); !errors.Is(err, errNoPlatform) {
		t.Errorf("ElementAt: expected errNoPlatform, got %v", err)
	}
	if els, err := p.VisibleElements(ctx, 1234, 5); !errors.Is(err, errNoPlatform) || els != nil {
		t.Errorf("VisibleElements: expected (nil, errNoPlatform), got (%v, %v)", els, err)
	}
}

func TestOracleProvider_DefaultsModelPerProvider(t *testing.T) {
	// Neither provider should panic on an empty model override; each
	// falls back to its own default model name.
	openaiProvider := OracleProvider(config.Config{AIProvider: "openai", OpenAIAPIKey: "test-key"}, "")
	if openaiProvider == nil {
		t.Fatal("expected a non-nil OpenAI provider")
	}

	geminiProvider := OracleProvider(config.Config{AIProvider: "gemini", GeminiAPIKey: "test-key"}, "")
	if geminiProvider == nil {
		t.Fatal("expected a non-nil Gemini provider")
	}
}
