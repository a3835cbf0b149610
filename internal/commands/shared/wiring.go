package shared

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/kazuyaegusa/deskautomata/internal/action"
	"github.com/kazuyaegusa/deskautomata/internal/approval"
	"github.com/kazuyaegusa/deskautomata/internal/autoloop"
	"github.com/kazuyaegusa/deskautomata/internal/config"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/observe"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/recovery"
	"github.com/kazuyaegusa/deskautomata/internal/verify"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// errNoPlatform is returned by every unconfiguredPlatform method. A real
// screen/accessibility collaborator is platform-specific and outside this
// module's scope (§4.11); unconfiguredPlatform lets the CLI still build a
// complete Observer that exercises C11's all-silent-failure contract rather
// than needing a nil check of its own.
var errNoPlatform = errors.New("observe: no platform collaborator configured")

type unconfiguredPlatform struct{}

func (unconfiguredPlatform) FrontmostApp(ctx context.Context) (string, error) {
	return "", errNoPlatform
}

func (unconfiguredPlatform) Screenshot(ctx context.Context, prefix string) (string, error) {
	return "", errNoPlatform
}

func (unconfiguredPlatform) ElementAt(ctx context.Context, x, y int) (observe.PositionObservation, error) {
	return observe.PositionObservation{}, errNoPlatform
}

func (unconfiguredPlatform) VisibleElements(ctx context.Context, pid, maxDepth int) ([]observe.Element, error) {
	return nil, errNoPlatform
}

// BuildLoop assembles an autoloop.Loop from the resolved config and an
// oracle provider, matching the dependency graph §4.14 composes (C5, C6,
// C10 recovery, C11-C13 observer/selector/verifier, and the approver). No
// UI probe is wired: the loop is built with a nil probe, so every step that
// is not a dry run fails with EXECUTION_FAILED.
func BuildLoop(workflowDir string, provider oracle.Provider, confirmDangerous bool, logger *slog.Logger) (*autoloop.Loop, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := workflow.NewStore(workflowDir, logger)
	if err != nil {
		return nil, NewFailure("open workflow store", err)
	}
	feedbacks, err := feedback.NewStore(filepath.Join(workflowDir, "feedback"), logger)
	if err != nil {
		return nil, NewFailure("open feedback store", err)
	}

	adapter := oracle.NewAdapter(provider, oracle.DefaultRetryConfig(), 1.0, logger)

	observer := observe.New(unconfiguredPlatform{}, logger)
	selector := action.New(adapter)
	verifier := verify.New(adapter)
	learner := recovery.New(filepath.Join(workflowDir, "recovery_patterns.json"))

	var approver approval.Approver
	if confirmDangerous {
		approver = approval.NewHuhApprover()
	} else {
		approver = approval.AutoSkipApprover{}
	}

	return autoloop.New(store, feedbacks, observer, selector, verifier, learner, nil, approver, adapter, logger), nil
}

// LoadConfig resolves config.Config from the environment, then applies the
// --config file (if set via the persistent flag) on top.
func LoadConfig() (config.Config, error) {
	cfg, err := config.FromFile(GetConfigPath())
	if err != nil {
		return config.Config{}, NewFailure("load config", err)
	}
	return cfg, nil
}

// OracleProvider selects the configured AI provider (§6 AI_PROVIDER env
// var), applying modelOverride to whichever provider is active.
func OracleProvider(cfg config.Config, modelOverride string) oracle.Provider {
	model := modelOverride
	switch cfg.AIProvider {
	case "gemini":
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return oracle.NewGeminiProvider(cfg.GeminiAPIKey, model, model)
	default:
		if model == "" {
			model = "gpt-4o"
		}
		return oracle.NewOpenAIProvider(cfg.OpenAIAPIKey, model, model, "")
	}
}
