package analytics

type BadgeID string

const (
	BadgeQuickEye     BadgeID = "quick_eye"
	BadgeArtist       BadgeID = "artist"
	BadgeSharpGuesser BadgeID = "sharp_guesser"
	BadgeCenturion    BadgeID = "centurion"
	BadgeVeteran      BadgeID = "veteran"
	BadgeCrowdPleaser BadgeID = "crowd_pleaser"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeQuickEye:     {ID: BadgeQuickEye, Name: "Quick Eye", Description: "Guessed a word for 50+ points", Icon: "👀"},
	BadgeArtist:       {ID: BadgeArtist, Name: "Artist", Description: "10+ drawings guessed by others", Icon: "🎨"},
	BadgeSharpGuesser: {ID: BadgeSharpGuesser, Name: "Sharp Guesser", Description: "Guessed 10+ words", Icon: "🎯"},
	BadgeCenturion:    {ID: BadgeCenturion, Name: "Centurion", Description: "100+ total points", Icon: "💯"},
	BadgeVeteran:      {ID: BadgeVeteran, Name: "Veteran", Description: "Drew 10+ rounds", Icon: "🏅"},
	BadgeCrowdPleaser: {ID: BadgeCrowdPleaser, Name: "Crowd Pleaser", Description: "75%+ of 5 or more drawings guessed", Icon: "✨"},
}

// EvaluateBadges checks which badges the aggregated history has earned.
func EvaluateBadges(stats PlayerStats) []Badge {
	var earned []Badge

	if stats.BestGuess >= 50 {
		earned = append(earned, AllBadges[BadgeQuickEye])
	}
	if stats.DrawingsSolved >= 10 {
		earned = append(earned, AllBadges[BadgeArtist])
	}
	if stats.RoundsGuessed >= 10 {
		earned = append(earned, AllBadges[BadgeSharpGuesser])
	}
	if stats.TotalPoints >= 100 {
		earned = append(earned, AllBadges[BadgeCenturion])
	}
	if stats.RoundsDrawn >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}
	if stats.RoundsDrawn >= 5 && stats.SolveRate >= 75.0 {
		earned = append(earned, AllBadges[BadgeCrowdPleaser])
	}

	return earned
}
