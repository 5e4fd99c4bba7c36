package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/backgammon-server/auth"
	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/storage/sqlite"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &out
	err := cmd.Run(context.Background(), append([]string{"bgctl"}, args...))
	return out.String(), err
}

func TestUsersCreateAndShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bg.db")

	out, err := runCLI(t, "--db", db, "users", "create", "--id", "alice", "--username", "Alice", "--balance", "500")
	if err != nil {
		t.Fatalf("users create: %v", err)
	}
	if !strings.Contains(out, "Created user alice (Alice) with balance 500") {
		t.Errorf("Unexpected output: %s", out)
	}

	if _, err := runCLI(t, "--db", db, "users", "create", "--id", "alice", "--username", "Other"); err == nil {
		t.Error("Expected duplicate id to fail")
	}

	store, err := sqlite.Open(db)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	g := engine.NewGame(engine.NewGameParams{RoomID: "room-1", TierID: 2, Bet: 200, White: "alice", Black: "bob", Now: time.Now()})
	g.Won = engine.White
	rec := account.MatchRecord{
		RoomID: "room-1", TierID: 2, WhiteID: "alice", BlackID: "bob", Winner: engine.White,
		Stake: 200, Multiplier: 1, Game: g, StartedAt: time.Now(), ConcludedAt: time.Now(),
	}
	if err := store.Archive(context.Background(), rec); err != nil {
		t.Fatalf("archive: %v", err)
	}
	store.Close()

	out, err = runCLI(t, "--db", db, "users", "show", "alice")
	if err != nil {
		t.Fatalf("users show: %v", err)
	}
	for _, want := range []string{"User: Alice (alice)", "Balance: 500", "Rating: 1500", "Recent matches (1)", "room-1", "won"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output, got: %s", want, out)
		}
	}

	out, err = runCLI(t, "--db", db, "archive", "stats")
	if err != nil {
		t.Fatalf("archive stats: %v", err)
	}
	if !strings.Contains(out, "Matches: 1") || !strings.Contains(out, "tier 2: 1") {
		t.Errorf("Unexpected stats output: %s", out)
	}
}

func TestUsersShowMissing(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bg.db")

	if _, err := runCLI(t, "--db", db, "users", "show"); err == nil {
		t.Error("Expected error without a user id")
	}
	if _, err := runCLI(t, "--db", db, "users", "show", "nobody"); err == nil {
		t.Error("Expected error for unknown user")
	}
}

func TestUsersToken(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bg.db")
	if _, err := runCLI(t, "--db", db, "users", "create", "--id", "bob", "--username", "Bob"); err != nil {
		t.Fatalf("users create: %v", err)
	}

	out, err := runCLI(t, "--db", db, "users", "token", "--secret", "s3cret", "--ttl", "1h", "bob")
	if err != nil {
		t.Fatalf("users token: %v", err)
	}

	verifier, _ := auth.NewTokenVerifier("s3cret")
	userID, err := verifier.Authenticate(context.Background(), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if userID != "bob" {
		t.Errorf("Expected bob, got %s", userID)
	}
}

func writeBoard(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestBoardsValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dir := t.TempDir()
		writeBoard(t, dir, "wood.json", `{"id":1,"title":"Wood","bet":100,"limit":45}`)
		writeBoard(t, dir, "stone.json", `{"id":2,"title":"Stone","bet":200,"limit":45}`)

		out, err := runCLI(t, "boards", "validate", dir)
		if err != nil {
			t.Fatalf("boards validate: %v\n%s", err, out)
		}
		if !strings.Contains(out, "2 files, 0 invalid") {
			t.Errorf("Unexpected output: %s", out)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		dir := t.TempDir()
		writeBoard(t, dir, "a.json", `{"id":1,"title":"A","bet":100,"limit":45}`)
		writeBoard(t, dir, "b.json", `{"id":1,"title":"B","bet":100,"limit":45}`)
		writeBoard(t, dir, "c.json", `{"id":3,"title":"C","bet":0,"limit":45}`)
		writeBoard(t, dir, "d.json", `{"id":4,"title":"D","bet":10,"limit":45,"color":"red"}`)

		out, err := runCLI(t, "boards", "validate", dir)
		if err == nil {
			t.Fatal("Expected validation to fail")
		}
		for _, want := range []string{"id 1 already used by a.json", "bet must be positive", "Invalid JSON", "4 files, 3 invalid"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected %q in output, got: %s", want, out)
			}
		}
	})

	t.Run("shipped boards", func(t *testing.T) {
		results, err := validateBoardDir(filepath.Join("..", "..", "configs", "boards"))
		if err != nil {
			t.Fatalf("validateBoardDir: %v", err)
		}
		if len(results) != 6 {
			t.Errorf("Expected 6 shipped boards, got %d", len(results))
		}
		for _, r := range results {
			if !r.Valid {
				t.Errorf("%s: %v", r.File, r.Errors)
			}
		}
	})
}
