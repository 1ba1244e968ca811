package processpending

import "notification-dispatch/internal/sweep"

// Output is flattened into process variables on completion.
type Output struct {
	Scanned int `json:"sweepScanned"`
	Sent    int `json:"sweepSent"`
	Failed  int `json:"sweepFailed"`
	Skipped int `json:"sweepSkipped"`
	Claimed int `json:"sweepClaimed"`
}

func outputFrom(r sweep.SweepResult) *Output {
	return &Output{
		Scanned: r.Scanned,
		Sent:    r.Sent,
		Failed:  r.Failed,
		Skipped: r.Skipped,
		Claimed: r.Claimed,
	}
}

func (o *Output) toVariables() map[string]interface{} {
	return map[string]interface{}{
		"sweepScanned": o.Scanned,
		"sweepSent":    o.Sent,
		"sweepFailed":  o.Failed,
		"sweepSkipped": o.Skipped,
		"sweepClaimed": o.Claimed,
	}
}
