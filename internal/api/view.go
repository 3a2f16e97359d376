package api

import (
	"github.com/minesweeper-replay/internal/board"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/service"
)

// Loss overlay marks
const (
	markFlaggedMine = "P"
	markWrongFlag   = "X"
)

// renderBoard returns the display grid of b. Lost boards get the overlay:
// correctly flagged mines, wrong flags and every other mine are told apart.
func renderBoard(b *board.Board) [][]string {
	display := b.Display()
	if !b.IsOver() {
		return display
	}

	for row := range display {
		for col := range display[row] {
			visibility, _ := b.Visibility(row, col)
			mine := b.IsMine(row, col)

			switch {
			case mine && visibility == board.Flagged:
				display[row][col] = markFlaggedMine
			case mine:
				display[row][col] = board.MarkMine
			case visibility == board.Flagged:
				display[row][col] = markWrongFlag
			}
		}
	}
	return display
}

func gameResponse(session *service.Session) models.GameResponse {
	return models.GameResponse{
		GameSummary: session.Game.Summary(),
		GameOver:    session.Board.IsOver(),
		GameWon:     session.Board.IsWon(),
		Board:       renderBoard(session.Board),
	}
}

func summaries(games []*models.Game) []models.GameSummary {
	out := make([]models.GameSummary, len(games))
	for i, game := range games {
		out[i] = game.Summary()
	}
	return out
}
