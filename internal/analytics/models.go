package analytics

// PlayerStats aggregates the round history of one display name.
type PlayerStats struct {
	Name           string  `json:"name"`
	RoundsDrawn    int     `json:"roundsDrawn"`
	RoundsGuessed  int     `json:"roundsGuessed"`
	DrawingsSolved int     `json:"drawingsSolved"` // rounds drawn that someone guessed
	TotalPoints    int     `json:"totalPoints"`
	BestGuess      int     `json:"bestGuess"`
	SolveRate      float64 `json:"solveRate"` // percentage of drawn rounds that were guessed
	Badges         []Badge `json:"badges"`
}
