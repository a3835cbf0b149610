package shared

import (
	"encoding/json"
	"fmt"

	"github.com/kazuyaegusa/deskautomata/internal/autoloop"
)

// PrintLoopResult renders an autoloop.Result as JSON (--json) or a short
// human-readable summary, shared by the run and play subcommands.
func PrintLoopResult(result autoloop.Result) {
	if GetJSON() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Println("error marshaling result:", err)
			return
		}
		fmt.Println(string(data))
		return
	}

	status := "failed"
	if result.Success {
		status = "succeeded"
	}
	fmt.Printf("%s in %.1fs, goal achieved: %v, feedback: %s\n", status, result.TotalTimeSeconds, result.GoalAchieved, result.FeedbackID)
	for _, step := range result.Steps {
		outcome := "ok"
		switch {
		case step.SkippedDangerous:
			outcome = "skipped (dangerous app)"
		case !step.Success:
			outcome = fmt.Sprintf("failed (%s)", step.ErrorCode)
		}
		fmt.Printf("  step %d [%s]: %s\n", step.StepIndex, step.ActionType, outcome)
	}
}
