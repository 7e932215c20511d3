package scoring

// Summary counts a ranking by urgency level.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Overdue  int `json:"overdue"`
	Degraded int `json:"degraded"`
}

func Summarize(ranked []RankedAssignment) Summary {
	s := Summary{Total: len(ranked)}
	for _, r := range ranked {
		switch r.Assessment.UrgencyLevel {
		case LevelCritical:
			s.Critical++
		case LevelHigh:
			s.High++
		case LevelMedium:
			s.Medium++
		default:
			s.Low++
		}
		if d := r.Assessment.DaysUntilDeadline; d != nil && *d < 0 {
			s.Overdue++
		}
		if r.Assessment.Degraded {
			s.Degraded++
		}
	}
	return s
}
