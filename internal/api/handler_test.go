package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/minesweeper-replay/internal/board"
	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/models"
	"github.com/minesweeper-replay/internal/service"
	"github.com/minesweeper-replay/internal/storage"
	"github.com/minesweeper-replay/pkg/logger"
)

var testLimits = config.GameConfig{
	DefaultRows:  9,
	DefaultCols:  9,
	DefaultMines: 10,
	MaxRows:      50,
	MaxCols:      50,
}

type testServer struct {
	svc    *service.GameService
	router chi.Router
}

func newTestServer() *testServer {
	svc := service.NewGameService(storage.NewMemoryStorage(), testLimits, logger.NewNop())
	handler := NewHandler(svc, logger.NewNop())

	router := chi.NewRouter()
	router.Use(RequestIDMiddleware)
	router.Mount("/", handler.Routes())

	return &testServer{svc: svc, router: router}
}

// cornerGame starts a 3x3 game with mines at (0,0) and (2,2):
//
//	* 1 0
//	1 2 1
//	0 1 *
func (s *testServer) cornerGame(t *testing.T) string {
	t.Helper()
	session, err := s.svc.StartGame(context.Background(), models.StartGameRequest{
		PlayerName: "Alice",
		Rows:       3,
		Cols:       3,
		Mines:      2,
	}, board.WithLayout(board.Point{Row: 0, Col: 0}, board.Point{Row: 2, Col: 2}))
	if err != nil {
		t.Fatalf("Failed to start game: %v", err)
	}
	return session.Game.ID
}

func (s *testServer) do(t *testing.T, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v. Body: %s", err, w.Body.String())
	}
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer()

	w := srv.do(t, "GET", "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected request ID header to be set")
	}
}

func TestHandler_StartGame(t *testing.T) {
	srv := newTestServer()

	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "valid request",
			requestBody:    models.StartGameRequest{PlayerName: "Alice", Rows: 4, Cols: 5, Mines: 3},
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.GameResponse
				decode(t, w, &resp)
				if resp.ID == "" {
					t.Error("Expected game ID, got empty")
				}
				if resp.PlayerName != "Alice" {
					t.Errorf("Expected player Alice, got %s", resp.PlayerName)
				}
				if resp.Status != models.StatusActive {
					t.Errorf("Expected status active, got %s", resp.Status)
				}
				if len(resp.Board) != 4 || len(resp.Board[0]) != 5 {
					t.Fatalf("Expected 4x5 board, got %dx%d", len(resp.Board), len(resp.Board[0]))
				}
				for _, row := range resp.Board {
					for _, cell := range row {
						if cell != board.MarkUnopened {
							t.Fatalf("Expected every cell unopened, got %q", cell)
						}
					}
				}
			},
		},
		{
			name:           "default player and size",
			requestBody:    map[string]interface{}{},
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.GameResponse
				decode(t, w, &resp)
				if resp.PlayerName != service.DefaultPlayerName {
					t.Errorf("Expected player %s, got %s", service.DefaultPlayerName, resp.PlayerName)
				}
				if resp.Rows != 9 || resp.Cols != 9 || resp.Mines != 10 {
					t.Errorf("Expected 9x9 with 10 mines, got %dx%d with %d", resp.Rows, resp.Cols, resp.Mines)
				}
			},
		},
		{
			name:           "invalid player name",
			requestBody:    models.StartGameRequest{PlayerName: "x_x"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "too many mines",
			requestBody:    models.StartGameRequest{Rows: 2, Cols: 2, Mines: 4},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, "POST", "/games", tt.requestBody)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}
}

func TestHandler_GetGame(t *testing.T) {
	srv := newTestServer()
	id := srv.cornerGame(t)

	tests := []struct {
		name           string
		gameID         string
		expectedStatus int
	}{
		{"existing game", id, http.StatusOK},
		{"non-existent game", "non-existent", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, "GET", "/games/"+tt.gameID, nil)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_Play(t *testing.T) {
	srv := newTestServer()
	id := srv.cornerGame(t)
	url := "/games/" + id + "/moves"

	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "open numbered cell",
			requestBody:    models.MoveRequest{Row: 1, Col: 1, Action: models.ActionOpen},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.MoveResponse
				decode(t, w, &resp)
				if !resp.Applied || !resp.Recorded {
					t.Errorf("Expected applied and recorded move, got %+v", resp)
				}
				if resp.Move == nil || resp.Move.Number != 1 || resp.Move.Result != service.ResultSafe {
					t.Errorf("Unexpected move: %+v", resp.Move)
				}
				if resp.Game.Board[1][1] != "2" {
					t.Errorf("Expected (1,1) to show 2, got %q", resp.Game.Board[1][1])
				}
			},
		},
		{
			name:           "open same cell again",
			requestBody:    models.MoveRequest{Row: 1, Col: 1, Action: models.ActionOpen},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.MoveResponse
				decode(t, w, &resp)
				if resp.Applied || resp.Recorded || resp.Move != nil {
					t.Errorf("Expected no-op, got %+v", resp)
				}
			},
		},
		{
			name:           "unknown action",
			requestBody:    map[string]interface{}{"row": 0, "col": 0, "action": "dig"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "open mine",
			requestBody:    models.MoveRequest{Row: 2, Col: 2, Action: models.ActionOpen},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp models.MoveResponse
				decode(t, w, &resp)
				if resp.Applied || !resp.Recorded {
					t.Errorf("Expected recorded losing move, got applied=%v recorded=%v", resp.Applied, resp.Recorded)
				}
				if !resp.Game.GameOver || resp.Game.Status != models.StatusLost {
					t.Errorf("Expected lost game, got %+v", resp.Game.GameSummary)
				}
				if resp.Game.Board[0][0] != board.MarkMine || resp.Game.Board[2][2] != board.MarkMine {
					t.Errorf("Expected both mines shown, got %v", resp.Game.Board)
				}
			},
		},
		{
			name:           "play finished game",
			requestBody:    models.MoveRequest{Row: 0, Col: 2, Action: models.ActionOpen},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, "POST", url, tt.requestBody)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			if tt.validate != nil {
				tt.validate(t, w)
			}
		})
	}

	w := srv.do(t, "GET", url, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 listing moves, got %d", w.Code)
	}
	var moves []models.Move
	decode(t, w, &moves)
	if len(moves) != 2 {
		t.Errorf("Expected 2 logged moves, got %d", len(moves))
	}
}

func TestHandler_ResumeAndSave(t *testing.T) {
	srv := newTestServer()
	id := srv.cornerGame(t)

	if w := srv.do(t, "POST", "/games/"+id+"/resume", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 resuming, got %d. Body: %s", w.Code, w.Body.String())
	}
	if w := srv.do(t, "POST", "/games/"+id+"/save", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 saving, got %d. Body: %s", w.Code, w.Body.String())
	}
	if w := srv.do(t, "POST", "/games/missing/save", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 saving missing game, got %d", w.Code)
	}

	srv.do(t, "POST", "/games/"+id+"/moves", models.MoveRequest{Row: 0, Col: 0, Action: models.ActionOpen})

	if w := srv.do(t, "POST", "/games/"+id+"/resume", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 resuming finished game, got %d", w.Code)
	}
}

func TestHandler_ListGames(t *testing.T) {
	srv := newTestServer()
	finished := srv.cornerGame(t)
	active := srv.cornerGame(t)
	srv.do(t, "POST", "/games/"+finished+"/moves", models.MoveRequest{Row: 0, Col: 0, Action: models.ActionOpen})

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []string
	}{
		{"all games", "", http.StatusOK, []string{active, finished}},
		{"active only", "?active=true", http.StatusOK, []string{active}},
		{"explicit false", "?active=false", http.StatusOK, []string{active, finished}},
		{"bad flag", "?active=maybe", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, "GET", "/games"+tt.query, nil)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedIDs == nil {
				return
			}

			var games []models.GameSummary
			decode(t, w, &games)
			if len(games) != len(tt.expectedIDs) {
				t.Fatalf("Expected %d games, got %d", len(tt.expectedIDs), len(games))
			}
			for i, want := range tt.expectedIDs {
				if games[i].ID != want {
					t.Errorf("Expected game %d to be %s, got %s", i, want, games[i].ID)
				}
			}
		})
	}
}

func TestHandler_Replay(t *testing.T) {
	srv := newTestServer()
	id := srv.cornerGame(t)

	srv.do(t, "POST", "/games/"+id+"/moves", models.MoveRequest{Row: 0, Col: 0, Action: models.ActionFlag})
	srv.do(t, "POST", "/games/"+id+"/moves", models.MoveRequest{Row: 0, Col: 1, Action: models.ActionFlag})
	srv.do(t, "POST", "/games/"+id+"/moves", models.MoveRequest{Row: 2, Col: 2, Action: models.ActionOpen})

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		validate       func(*testing.T, models.ReplayResponse)
	}{
		{
			name:           "whole game",
			query:          "",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp models.ReplayResponse) {
				if resp.Step != 3 || len(resp.Moves) != 3 {
					t.Errorf("Expected step 3 of 3 moves, got step %d of %d", resp.Step, len(resp.Moves))
				}
				want := [][]string{
					{markFlaggedMine, markWrongFlag, board.MarkUnopened},
					{board.MarkUnopened, board.MarkUnopened, board.MarkUnopened},
					{board.MarkUnopened, board.MarkUnopened, board.MarkMine},
				}
				assertGrid(t, resp.FinalBoard, want)
				assertGrid(t, resp.StepBoard, want)
			},
		},
		{
			name:           "first move",
			query:          "?step=1",
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp models.ReplayResponse) {
				if resp.Step != 1 {
					t.Errorf("Expected step 1, got %d", resp.Step)
				}
				assertGrid(t, resp.StepBoard, [][]string{
					{board.MarkFlag, board.MarkUnopened, board.MarkUnopened},
					{board.MarkUnopened, board.MarkUnopened, board.MarkUnopened},
					{board.MarkUnopened, board.MarkUnopened, board.MarkUnopened},
				})
			},
		},
		{"step past the log", "?step=4", http.StatusBadRequest, nil},
		{"negative step", "?step=-1", http.StatusBadRequest, nil},
		{"non-numeric step", "?step=last", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := srv.do(t, "GET", "/games/"+id+"/replay"+tt.query, nil)

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d. Body: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validate != nil {
				var resp models.ReplayResponse
				decode(t, w, &resp)
				tt.validate(t, resp)
			}
		})
	}

	if w := srv.do(t, "GET", "/games/missing/replay", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing game, got %d", w.Code)
	}
}

func TestHandler_DeleteGame(t *testing.T) {
	srv := newTestServer()
	id := srv.cornerGame(t)

	if w := srv.do(t, "DELETE", "/games/"+id, nil); w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d. Body: %s", w.Code, w.Body.String())
	}
	if w := srv.do(t, "GET", "/games/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
	if w := srv.do(t, "DELETE", "/games/"+id, nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected deleting twice to succeed, got %d", w.Code)
	}
}

func TestRenderBoard_ActiveGameHasNoOverlay(t *testing.T) {
	b, err := board.New(3, 3, 2, board.WithLayout(board.Point{Row: 0, Col: 0}, board.Point{Row: 2, Col: 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Flag(0, 1)
	b.Open(0, 2)

	assertGrid(t, renderBoard(b), [][]string{
		{board.MarkUnopened, board.MarkFlag, board.MarkBlank},
		{board.MarkUnopened, "2", "1"},
		{board.MarkUnopened, board.MarkUnopened, board.MarkUnopened},
	})
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("Expected request ID req-42, got %q", got)
	}
}

func assertGrid(t *testing.T, got, want [][]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(got))
	}
	for r := range want {
		if len(got[r]) != len(want[r]) {
			t.Fatalf("Row %d: expected %d cols, got %d", r, len(want[r]), len(got[r]))
		}
		for c := range want[r] {
			if got[r][c] != want[r][c] {
				t.Errorf("Cell (%d,%d): expected %q, got %q", r, c, want[r][c], got[r][c])
			}
		}
	}
}
