// Package storagetest holds the behaviour every storage.RecordStore must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minesweeper-replay/internal/codec"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/storage"
)

// tick separates timestamps for stores with millisecond precision.
const tick = 5 * time.Millisecond

// NewGame returns an unsaved game with a small valid-looking snapshot.
func NewGame(player string) *models.Game {
	return &models.Game{
		PlayerName: player,
		Snapshot: codec.Snapshot{
			Rows:         1,
			Cols:         3,
			Mines:        1,
			BoardState:   "[[1,-1,1]]",
			VisibleState: `[["unopened","unopened","unopened"]]`,
		},
	}
}

// Run exercises a RecordStore. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.RecordStore) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("ListOrdering", func(t *testing.T) { testListOrdering(t, newStore(t)) })
	t.Run("Moves", func(t *testing.T) { testMoves(t, newStore(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
}

func testCreateAndGet(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	game := NewGame("Alice")

	id, err := s.CreateGame(ctx, game)
	if err != nil {
		t.Fatalf("unexpected error creating game: %v", err)
	}
	if id == "" || game.ID != id {
		t.Fatalf("expected game ID to be assigned, got %q / %q", id, game.ID)
	}
	if game.CreatedAt.IsZero() || !game.CreatedAt.Equal(game.UpdatedAt) {
		t.Errorf("expected matching creation timestamps, got %v / %v", game.CreatedAt, game.UpdatedAt)
	}

	got, err := s.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error getting game: %v", err)
	}
	if got.PlayerName != "Alice" || got.Snapshot != game.Snapshot {
		t.Errorf("stored game differs: %+v", got)
	}
	if got.CreatedAt.Sub(game.CreatedAt).Abs() > time.Millisecond {
		t.Errorf("created_at drifted: %v vs %v", got.CreatedAt, game.CreatedAt)
	}

	other, err := s.CreateGame(ctx, NewGame("Bob"))
	if err != nil {
		t.Fatalf("unexpected error creating second game: %v", err)
	}
	if other == id {
		t.Errorf("expected distinct IDs")
	}
}

func testGetMissing(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()

	if _, err := s.GetGame(ctx, "missing"); !errors.Is(err, storage.ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound, got %v", err)
	}
	game := NewGame("Ghost")
	game.ID = "missing"
	if err := s.UpdateGame(ctx, game); !errors.Is(err, storage.ErrGameNotFound) {
		t.Errorf("expected ErrGameNotFound on update, got %v", err)
	}
	if err := s.DeleteGame(ctx, "missing"); err != nil {
		t.Errorf("expected delete of missing game to succeed, got %v", err)
	}
}

func testUpdate(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	game := NewGame("Alice")
	id, err := s.CreateGame(ctx, game)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created := game.CreatedAt

	time.Sleep(tick)
	update := NewGame("Mallory")
	update.ID = id
	update.VisibleState = `[["revealed","unopened","unopened"]]`
	update.OpenedCells = 1
	if err := s.UpdateGame(ctx, update); err != nil {
		t.Fatalf("unexpected error updating: %v", err)
	}

	got, err := s.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PlayerName != "Alice" {
		t.Errorf("update must keep the player name, got %q", got.PlayerName)
	}
	if got.OpenedCells != 1 || got.VisibleState != update.VisibleState {
		t.Errorf("snapshot not updated: %+v", got.Snapshot)
	}
	if got.CreatedAt.Sub(created).Abs() > time.Millisecond {
		t.Errorf("update must keep created_at")
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("expected updated_at %v after created_at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func testListOrdering(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()

	ids := make([]string, 3)
	for i, name := range []string{"First", "Second", "Third"} {
		id, err := s.CreateGame(ctx, NewGame(name))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids[i] = id
		time.Sleep(tick)
	}

	// Finish the third game and touch the first.
	finished := NewGame("Third")
	finished.ID = ids[2]
	finished.GameWon = true
	finished.OpenedCells = 2
	if err := s.UpdateGame(ctx, finished); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(tick)
	touched := NewGame("First")
	touched.ID = ids[0]
	if err := s.UpdateGame(ctx, touched); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := s.ListGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error listing: %v", err)
	}
	assertOrder(t, "all games", all, ids[2], ids[1], ids[0])

	active, err := s.ListActiveGames(ctx)
	if err != nil {
		t.Fatalf("unexpected error listing active: %v", err)
	}
	assertOrder(t, "active games", active, ids[0], ids[1])
}

func assertOrder(t *testing.T, what string, games []*models.Game, want ...string) {
	t.Helper()
	if len(games) != len(want) {
		t.Fatalf("%s: expected %d games, got %d", what, len(want), len(games))
	}
	for i, id := range want {
		if games[i].ID != id {
			t.Errorf("%s: position %d expected %s, got %s", what, i, id, games[i].ID)
		}
	}
}

func testMoves(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	id, err := s.CreateGame(ctx, NewGame("Alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, err := s.NextMoveNumber(ctx, id)
	if err != nil || next != 1 {
		t.Fatalf("expected first move number 1, got %d (%v)", next, err)
	}

	// Append out of order with a gap; the log must still come back sorted.
	for _, n := range []int{2, 1, 5} {
		move := &models.Move{GameID: id, Number: n, Row: n, Col: 0, Action: models.ActionOpen, Result: "safe"}
		if err := s.AppendMove(ctx, move); err != nil {
			t.Fatalf("unexpected error appending move %d: %v", n, err)
		}
	}

	dup := &models.Move{GameID: id, Number: 2, Action: models.ActionFlag, Result: "flagged"}
	if err := s.AppendMove(ctx, dup); !errors.Is(err, storage.ErrMoveExists) {
		t.Errorf("expected ErrMoveExists, got %v", err)
	}

	next, err = s.NextMoveNumber(ctx, id)
	if err != nil || next != 6 {
		t.Errorf("expected next move number 6, got %d (%v)", next, err)
	}

	moves, err := s.ListMoves(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error listing moves: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(moves))
	}
	for i, want := range []int{1, 2, 5} {
		if moves[i].Number != want || moves[i].Row != want {
			t.Errorf("position %d: expected move %d, got %+v", i, want, moves[i])
		}
		if moves[i].Action != models.ActionOpen || moves[i].Result != "safe" || moves[i].GameID != id {
			t.Errorf("move %d not stored faithfully: %+v", want, moves[i])
		}
	}

	empty, err := s.ListMoves(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected no moves for missing game, got %v (%v)", empty, err)
	}
}

func testDeleteCascades(t *testing.T, s storage.RecordStore) {
	ctx := context.Background()
	id, err := s.CreateGame(ctx, NewGame("Alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	keep, err := s.CreateGame(ctx, NewGame("Bob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, gameID := range []string{id, keep} {
		move := &models.Move{GameID: gameID, Number: 1, Action: models.ActionFlag, Result: "flagged"}
		if err := s.AppendMove(ctx, move); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := s.DeleteGame(ctx, id); err != nil {
		t.Fatalf("unexpected error deleting: %v", err)
	}

	if _, err := s.GetGame(ctx, id); !errors.Is(err, storage.ErrGameNotFound) {
		t.Errorf("expected deleted game to be gone, got %v", err)
	}
	moves, err := s.ListMoves(ctx, id)
	if err != nil || len(moves) != 0 {
		t.Errorf("expected moves to be deleted, got %d (%v)", len(moves), err)
	}
	if next, _ := s.NextMoveNumber(ctx, id); next != 1 {
		t.Errorf("expected numbering to restart, got %d", next)
	}

	if moves, _ := s.ListMoves(ctx, keep); len(moves) != 1 {
		t.Errorf("delete touched another game's moves")
	}
	all, _ := s.ListGames(ctx)
	if len(all) != 1 || all[0].ID != keep {
		t.Errorf("expected only the kept game to remain")
	}
}
