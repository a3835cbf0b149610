// Package catalog implements C8, the Reproducibility Scorer & Categorizer:
// rule-based categorization, an A/B/C reproducibility rank, and Markdown/JSON
// report rendering plus the always-written parts/catalog.json index (§4.8).
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// axCompatibility is the bundled app-keyed AX-tree compatibility table
// (§4.8), grounded on the original report_generator.py's _AX_COMPATIBILITY.
var axCompatibility = map[string]float64{
	"Finder":              0.95,
	"Safari":              0.90,
	"Google Chrome":       0.85,
	"Firefox":             0.85,
	"Arc":                 0.80,
	"Cursor":              0.80,
	"Code":                0.80,
	"Visual Studio Code":  0.80,
	"Terminal":            0.75,
	"iTerm2":              0.75,
	"Ghostty":             0.60,
	"Notion":              0.70,
	"Slack":               0.65,
	"Discord":             0.40,
	"LINE":                0.50,
	"Messages":            0.70,
	"Mail":                0.80,
	"System Preferences":  0.90,
	"System Settings":     0.90,
}

// categoryRule names the apps and tags that route a workflow into a
// business category (§4.8), grounded on the original's CATEGORY_RULES.
type categoryRule struct {
	Apps []string
	Tags []string
}

// categoryOrder fixes iteration order so app-name matching is deterministic
// (Go map iteration isn't).
var categoryOrder = []string{"開発", "コミュニケーション", "ブラウザ/Web", "AI/LLM", "システム操作", "プロジェクト管理"}

var categoryRules = map[string]categoryRule{
	"開発": {
		Apps: []string{"Cursor", "Code", "Visual Studio Code", "Ghostty", "Terminal", "iTerm2", "Xcode"},
		Tags: []string{"開発", "コーディング", "ビルド", "デバッグ", "git"},
	},
	"コミュニケーション": {
		Apps: []string{"LINE", "Discord", "Slack", "Mail", "Messages", "メール", "Zoom", "Teams"},
		Tags: []string{"チャット", "メール", "通話", "会議"},
	},
	"ブラウザ/Web": {
		Apps: []string{"Google Chrome", "Safari", "Firefox", "Arc"},
		Tags: []string{"ブラウザ", "Web", "検索"},
	},
	"AI/LLM": {
		Apps: []string{"Claude", "Google Gemini", "ChatGPT"},
		Tags: []string{"AI", "LLM", "GPT", "Gemini", "Claude"},
	},
	"システム操作": {
		Apps: []string{"Finder", "System Preferences", "System Settings", "Activity Monitor"},
		Tags: []string{"Finder", "システム", "設定"},
	},
	"プロジェクト管理": {
		Apps: []string{"Linear", "Notion", "Jira", "Asana", "Trello"},
		Tags: []string{"タスク管理", "プロジェクト", "チケット"},
	},
}

const uncategorized = "その他"

// FeedbackLookup is the subset of *feedback.Store the catalog depends on.
type FeedbackLookup interface {
	GetSuccessRate(workflowID string) float64
	HasFeedback(workflowID string) bool
}

// WorkflowLister is the subset of *workflow.Store the catalog depends on.
type WorkflowLister interface {
	ListAll() ([]*workflow.Workflow, error)
}

// Reproducibility is one workflow's scored evaluation (§4.8).
type Reproducibility struct {
	Score           float64
	Rank            string
	Confidence      float64
	SuccessRate     float64
	StepQuality     float64
	AXCompatibility float64
}

// Entry pairs a workflow with its reproducibility evaluation.
type Entry struct {
	Workflow        *workflow.Workflow
	Reproducibility Reproducibility
}

// Generator is C8: the reproducibility scorer/categorizer/report renderer.
type Generator struct {
	workflows WorkflowLister
	feedback  FeedbackLookup
	logger    *slog.Logger
}

func New(workflows WorkflowLister, feedback FeedbackLookup, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{workflows: workflows, feedback: feedback, logger: logger}
}

// Evaluate scores and ranks a single workflow (§4.8).
func (g *Generator) Evaluate(w *workflow.Workflow) Reproducibility {
	successRate := g.feedback.GetSuccessRate(w.WorkflowID)
	effectiveSuccessRate := successRate
	if !g.feedback.HasFeedback(w.WorkflowID) {
		effectiveSuccessRate = 0.15
	}

	stepQuality := stepQualityScore(w.Steps)
	axCompat := axCompatibilityScore(w.AppName, w.Steps)

	score := 0.30*w.Confidence + 0.30*effectiveSuccessRate + 0.25*stepQuality + 0.15*axCompat

	rank := "C"
	switch {
	case score >= 0.7:
		rank = "A"
	case score >= 0.4:
		rank = "B"
	}

	return Reproducibility{
		Score:           score,
		Rank:            rank,
		Confidence:      w.Confidence,
		SuccessRate:     effectiveSuccessRate,
		StepQuality:     stepQuality,
		AXCompatibility: axCompat,
	}
}

func stepQualityScore(steps []workflow.ActionStep) float64 {
	if len(steps) == 0 {
		return 0.0
	}
	var total float64
	for _, s := range steps {
		switch {
		case s.ActionType == workflow.ActionKeyShortcut:
			total += 0.95
		case s.ActionType == workflow.ActionTextInput:
			total += 0.80
		case s.ActionType == workflow.ActionClick || s.ActionType == workflow.ActionRightClick:
			switch {
			case s.Target.Identifier != "":
				total += 0.90
			case s.Target.Role != "" && s.Target.Title != "":
				total += 0.70
			default:
				total += 0.30
			}
		default:
			total += 0.50
		}
	}
	return total / float64(len(steps))
}

func axCompatibilityScore(appName string, steps []workflow.ActionStep) float64 {
	if score, ok := axCompatibility[appName]; ok {
		return score
	}
	if len(steps) == 0 {
		return 0.50
	}
	withDescriptor := 0
	for _, s := range steps {
		if s.Target.HasDescriptor() {
			withDescriptor++
		}
	}
	return 0.40 + (float64(withDescriptor)/float64(len(steps)))*0.40
}

// Classify returns the category a workflow routes to, app-name match taking
// precedence over tag match, falling back to "その他" (§4.8).
func Classify(w *workflow.Workflow) string {
	for _, cat := range categoryOrder {
		rule := categoryRules[cat]
		for _, app := range rule.Apps {
			if w.AppName == app {
				return cat
			}
		}
	}

	lowerTags := make(map[string]bool, len(w.Tags))
	for _, t := range w.Tags {
		lowerTags[strings.ToLower(t)] = true
	}
	for _, cat := range categoryOrder {
		rule := categoryRules[cat]
		for _, tag := range rule.Tags {
			if lowerTags[strings.ToLower(tag)] {
				return cat
			}
		}
	}

	return uncategorized
}

func (g *Generator) categorizeAll(workflows []*workflow.Workflow) map[string][]*workflow.Workflow {
	out := make(map[string][]*workflow.Workflow)
	for _, w := range workflows {
		cat := Classify(w)
		out[cat] = append(out[cat], w)
	}
	return out
}

func (g *Generator) evaluateAll(categorized map[string][]*workflow.Workflow) map[string][]Entry {
	out := make(map[string][]Entry, len(categorized))
	for cat, wfs := range categorized {
		entries := make([]Entry, 0, len(wfs))
		for _, w := range wfs {
			entries = append(entries, Entry{Workflow: w, Reproducibility: g.Evaluate(w)})
		}
		out[cat] = entries
	}
	return out
}

// Report renders either a "markdown" or "json" catalog report, optionally
// filtered to a single category for display; the on-disk catalog index is
// always refreshed across every category regardless of the filter (§4.8).
func (g *Generator) Report(format, categoryFilter, storeDir string) (string, error) {
	workflows, err := g.workflows.ListAll()
	if err != nil {
		return "", err
	}

	categorizedAll := g.categorizeAll(workflows)
	if _, err := g.writeCatalogIndex(storeDir, workflows, categorizedAll); err != nil {
		return "", err
	}

	categorized := categorizedAll
	if categoryFilter != "" {
		categorized = map[string][]*workflow.Workflow{categoryFilter: categorizedAll[categoryFilter]}
	}
	evaluated := g.evaluateAll(categorized)

	if format == "json" {
		return renderJSON(evaluated), nil
	}
	return renderMarkdown(evaluated), nil
}

// UpdateCatalog refreshes parts/catalog.json without rendering a report.
func (g *Generator) UpdateCatalog(storeDir string) (string, error) {
	workflows, err := g.workflows.ListAll()
	if err != nil {
		return "", err
	}
	categorized := g.categorizeAll(workflows)
	return g.writeCatalogIndex(storeDir, workflows, categorized)
}

type catalogFile struct {
	UpdatedAt  string                    `json:"updated_at"`
	Categories map[string]catalogEntries `json:"categories"`
	Stats      catalogStats              `json:"stats"`
}

type catalogEntries struct {
	Workflows []catalogItem `json:"workflows"`
}

type catalogItem struct {
	WorkflowID      string          `json:"workflow_id"`
	Name            string          `json:"name"`
	AppName         string          `json:"app_name"`
	Reproducibility catalogRepro    `json:"reproducibility"`
	StepsCount      int             `json:"steps_count"`
}

type catalogRepro struct {
	Score float64 `json:"score"`
	Rank  string  `json:"rank"`
}

type catalogStats struct {
	Total  int            `json:"total"`
	ByRank map[string]int `json:"by_rank"`
}

// writeCatalogIndex writes parts/catalog.json under storeDir, always, for
// every category (§4.8 "writing the catalog file is always done").
func (g *Generator) writeCatalogIndex(storeDir string, workflows []*workflow.Workflow, categorized map[string][]*workflow.Workflow) (string, error) {
	cat := catalogFile{
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		Categories: make(map[string]catalogEntries, len(categorized)),
		Stats:      catalogStats{Total: len(workflows), ByRank: map[string]int{"A": 0, "B": 0, "C": 0}},
	}

	for catName, wfs := range categorized {
		var items []catalogItem
		for _, w := range wfs {
			repro := g.Evaluate(w)
			cat.Stats.ByRank[repro.Rank]++
			items = append(items, catalogItem{
				WorkflowID:      w.WorkflowID,
				Name:            w.Name,
				AppName:         w.AppName,
				Reproducibility: catalogRepro{Score: round2(repro.Score), Rank: repro.Rank},
				StepsCount:      len(w.Steps),
			})
		}
		cat.Categories[catName] = catalogEntries{Workflows: items}
	}

	partsDir := filepath.Join(storeDir, "parts")
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(partsDir, "catalog.json")
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	if err := rebuildSQLIndex(storeDir, categorized, g.Evaluate); err != nil {
		g.logger.Warn("catalog sql index rebuild failed, continuing with json catalog only", "error", err)
	}

	return path, nil
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

var rankIcon = map[string]string{"A": "●", "B": "▲", "C": "×"}

func renderMarkdown(evaluated map[string][]Entry) string {
	var b strings.Builder

	total, byRank := summarize(evaluated)
	fmt.Fprintf(&b, "# 再現性レポート (%s)\n\n", time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "## サマリー\n\n")
	fmt.Fprintf(&b, "- 総ワークフロー数: %d\n", total)
	fmt.Fprintf(&b, "- カテゴリ数: %d\n", len(evaluated))
	fmt.Fprintf(&b, "- ランク A（再現可能）: %d\n", byRank["A"])
	fmt.Fprintf(&b, "- ランク B（要検証）: %d\n", byRank["B"])
	fmt.Fprintf(&b, "- ランク C（再現困難）: %d\n\n", byRank["C"])

	cats := make([]string, 0, len(evaluated))
	for cat := range evaluated {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		entries := append([]Entry(nil), evaluated[cat]...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Reproducibility.Score > entries[j].Reproducibility.Score
		})

		fmt.Fprintf(&b, "## %s (%d件)\n\n", cat, len(entries))
		b.WriteString("| ランク | ワークフロー | アプリ | スコア | ステップ数 | ステータス |\n")
		b.WriteString("|--------|------------|-------|--------|-----------|-----------|\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "| %s %s | %s | %s | %.2f | %d | %s |\n",
				rankIcon[e.Reproducibility.Rank], e.Reproducibility.Rank,
				e.Workflow.Name, e.Workflow.AppName, e.Reproducibility.Score,
				len(e.Workflow.Steps), e.Workflow.Status)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func summarize(evaluated map[string][]Entry) (int, map[string]int) {
	total := 0
	byRank := map[string]int{"A": 0, "B": 0, "C": 0}
	for _, entries := range evaluated {
		for _, e := range entries {
			total++
			byRank[e.Reproducibility.Rank]++
		}
	}
	return total, byRank
}

type jsonReport struct {
	GeneratedAt string                    `json:"generated_at"`
	Stats       map[string]any            `json:"stats"`
	Categories  map[string][]jsonCategory `json:"categories"`
}

type jsonCategory struct {
	WorkflowID      string         `json:"workflow_id"`
	Name            string         `json:"name"`
	AppName         string         `json:"app_name"`
	Status          string         `json:"status"`
	StepsCount      int            `json:"steps_count"`
	Reproducibility map[string]any `json:"reproducibility"`
}

func renderJSON(evaluated map[string][]Entry) string {
	total, byRank := summarize(evaluated)
	report := jsonReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stats: map[string]any{
			"total": total, "by_rank": byRank, "categories": len(evaluated),
		},
		Categories: make(map[string][]jsonCategory, len(evaluated)),
	}

	for cat, entries := range evaluated {
		items := make([]jsonCategory, 0, len(entries))
		for _, e := range entries {
			items = append(items, jsonCategory{
				WorkflowID: e.Workflow.WorkflowID,
				Name:       e.Workflow.Name,
				AppName:    e.Workflow.AppName,
				Status:     string(e.Workflow.Status),
				StepsCount: len(e.Workflow.Steps),
				Reproducibility: map[string]any{
					"score": round2(e.Reproducibility.Score),
					"rank":  e.Reproducibility.Rank,
					"detail": map[string]any{
						"confidence":       e.Reproducibility.Confidence,
						"success_rate":     e.Reproducibility.SuccessRate,
						"step_quality":     round3(e.Reproducibility.StepQuality),
						"ax_compatibility": round3(e.Reproducibility.AXCompatibility),
					},
				},
			})
		}
		report.Categories[cat] = items
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	return string(data)
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
