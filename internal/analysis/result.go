package analysis

// Anomaly status values the analysis service is instructed to emit.
const (
	StatusNormal  = "Normal"
	StatusFlagged = "User ID Flagged"
)

// ZScorePoint is one session observation with its computed Z-score.
type ZScorePoint struct {
	LastActiveAt float64 `json:"lastActiveAt"`
	ZScore       float64 `json:"z_score"`
}

// UserAnalysis holds the per-user statistics returned by the analysis
// service.
type UserAnalysis struct {
	UserID         string        `json:"userID"`
	MeanLastActive float64       `json:"mean_lastActiveAt"`
	StdLastActive  float64       `json:"std_lastActiveAt"`
	ZScores        []ZScorePoint `json:"z_scores"`
	AnomalyStatus  string        `json:"anomaly_status"`
}

// Result is the validated output of one analysis pass.
type Result struct {
	Users []UserAnalysis
}

// Flagged returns the analyses whose anomaly status is not Normal.
func (r *Result) Flagged() []UserAnalysis {
	var flagged []UserAnalysis
	for _, u := range r.Users {
		if u.AnomalyStatus != StatusNormal {
			flagged = append(flagged, u)
		}
	}
	return flagged
}
