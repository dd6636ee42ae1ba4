package memory

import "awsbot/app/service/workflow"

const (
	lineSummary = "summary"
	lineMessage = "message"
)

type jsonLineItem struct {
	Type    string            `json:"type"`
	Summary string            `json:"summary,omitempty"`
	Message *workflow.Message `json:"message,omitempty"`
}
