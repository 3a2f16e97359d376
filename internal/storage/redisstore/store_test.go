package redisstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/minesweeper-replay/internal/config"
	"github.com/minesweeper-replay/internal/storage/storagetest"
	"github.com/minesweeper-replay/pkg/logger"
)

func TestKeys(t *testing.T) {
	if got := gameKey("abc"); got != "game:abc" {
		t.Errorf("unexpected game key %q", got)
	}
	if got := movesKey("abc"); got != "game:abc:moves" {
		t.Errorf("unexpected moves key %q", got)
	}
}

func TestNextFromFields(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		want    int
		wantErr bool
	}{
		{name: "no moves", fields: nil, want: 1},
		{name: "contiguous", fields: []string{"1", "2", "3"}, want: 4},
		{name: "gaps and order", fields: []string{"7", "2"}, want: 8},
		{name: "garbage", fields: []string{"x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextFromFields(tt.fields)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDecodeGame(t *testing.T) {
	game := storagetest.NewGame("Alice")
	game.ID = "g-1"
	game.CreatedAt = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	game.UpdatedAt = game.CreatedAt

	data, err := json.Marshal(game)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := decodeGame(string(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "g-1" || got.Snapshot != game.Snapshot || !got.CreatedAt.Equal(game.CreatedAt) {
		t.Errorf("decoded game differs: %+v", got)
	}

	if _, err := decodeGame("{"); err == nil {
		t.Error("expected error for broken JSON")
	}
}

func TestNewStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewStore(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, logger.NewNop())
	if err == nil {
		t.Fatal("expected connection error")
	}
}
