package commands

import (
	"time"

	"github.com/dyluth/romp/internal/orchestrator"
	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/stage"
)

const previewWidth = 100

// printerReporter shows stage progress on the terminal.
type printerReporter struct{}

func (printerReporter) StageStarted(index, total int, agent, stageName string) {
	printer.Progress(index, total, stageName, agent)
}

func (printerReporter) StageFinished(res *stage.Result) {
	printer.Success("%s finished in %s (%d tool calls)\n", res.Stage, res.Duration.Round(100*time.Millisecond), len(res.ToolCalls))
	if res.Text != "" {
		printer.Detail("%s", printer.Preview(res.Text, previewWidth))
	}
}

func (printerReporter) StageFailed(agent, stageName string, err error) {
	printer.Warning("%s/%s failed: %v\n", agent, stageName, err)
}

func (printerReporter) ComplianceWarning(w orchestrator.ComplianceWarning) {
	printer.Warning("%s\n", w)
}
