package hunt

const (
	BaseScore   = 1000
	HintPenalty = 50
)

// ComputeScore scores a finished run: the base score plus one point per whole
// minute between start and end, minus the hint penalty, never below zero.
// Sessions without an end time get no time bonus.
func ComputeScore(s GameSession) int {
	bonus := 0
	if s.EndTime != nil && s.EndTime.After(s.StartTime) {
		bonus = int(s.EndTime.Sub(s.StartTime).Minutes())
	}
	return max(0, BaseScore+bonus-HintPenalty*s.HintsUsed)
}
