// Command bgctl is the operator CLI for the backgammon server. It seeds and
// inspects users, issues identity tokens, validates stake tier files and
// summarises the match archive.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/backgammon-server/auth"
	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/storage/sqlite"
)

func main() {
	_ = godotenv.Load()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "bgctl",
		Usage: "Operate a backgammon server's database and board files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "backgammon.db",
				Usage:   "SQLite database path",
				Sources: cli.EnvVars("BACKGAMMON_DB_PATH"),
			},
		},
		Commands: []*cli.Command{
			usersCommand(),
			boardsCommand(),
			archiveCommand(),
		},
	}
}

func openStore(cmd *cli.Command) (*sqlite.Store, error) {
	return sqlite.Open(cmd.String("db"))
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage player accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a user with a starting balance",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "User ID (default: random UUID)"},
					&cli.StringFlag{Name: "username", Usage: "Display name", Required: true},
					&cli.StringFlag{Name: "picture", Usage: "Avatar URL"},
					&cli.IntFlag{Name: "balance", Value: 1000, Usage: "Starting balance"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					id := cmd.String("id")
					if id == "" {
						id = uuid.NewString()
					}
					p := account.Profile{
						ID:       id,
						Username: cmd.String("username"),
						Picture:  cmd.String("picture"),
						Balance:  int64(cmd.Int("balance")),
					}
					if err := store.CreateUser(ctx, p); err != nil {
						if errors.Is(err, sqlite.ErrUserExists) {
							return fmt.Errorf("user %s already exists", id)
						}
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "Created user %s (%s) with balance %d\n", p.ID, p.Username, p.Balance)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show a user and their recent matches",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "matches", Value: 10, Usage: "Number of recent matches to show"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return errors.New("user id is required")
					}
					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					p, err := store.FindUser(ctx, id)
					if err != nil {
						return err
					}
					w := cmd.Root().Writer
					fmt.Fprintf(w, "User: %s (%s)\n", p.Username, p.ID)
					fmt.Fprintf(w, "Balance: %d\n", p.Balance)
					fmt.Fprintf(w, "Rating: %.0f\n", p.Rating())
					fmt.Fprintf(w, "Games played: %d\n", p.Experience)

					matches, err := store.ListMatchesForUser(ctx, id, int(cmd.Int("matches")))
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "\nRecent matches (%d):\n", len(matches))
					for _, m := range matches {
						winnerID := m.WhiteID
						if m.Winner == engine.Black {
							winnerID = m.BlackID
						}
						result := "lost"
						if winnerID == id {
							result = "won"
						}
						fmt.Fprintf(w, "- %s %s: tier %d, stake %d x%d, %s\n",
							m.ConcludedAt.Format("2006-01-02 15:04"), m.RoomID, m.TierID, m.Stake, m.Multiplier, result)
					}
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List users by username",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum number of users"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					users, err := store.ListUsers(ctx, int(cmd.Int("limit")))
					if err != nil {
						return err
					}
					for _, p := range users {
						fmt.Fprintf(cmd.Root().Writer, "%s\t%s\t%d\t%.0f\n", p.ID, p.Username, p.Balance, p.Rating())
					}
					return nil
				},
			},
			{
				Name:      "token",
				Usage:     "Issue an identity token for announceIdentity",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "HS256 signing secret",
						Sources:  cli.EnvVars("BACKGAMMON_JWT_SECRET"),
						Required: true,
					},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime (0 = no expiry)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := cmd.Args().First()
					if id == "" {
						return errors.New("user id is required")
					}
					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					p, err := store.FindUser(ctx, id)
					if err != nil {
						return err
					}
					verifier, err := auth.NewTokenVerifier(cmd.String("secret"))
					if err != nil {
						return err
					}
					token, err := verifier.Issue(p.ID, p.Username, cmd.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, token)
					return nil
				},
			},
		},
	}
}

func boardsCommand() *cli.Command {
	return &cli.Command{
		Name:  "boards",
		Usage: "Work with stake tier files",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate every board file in a directory",
				ArgsUsage: "[dir]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					dir := cmd.Args().First()
					if dir == "" {
						dir = "configs/boards"
					}
					results, err := validateBoardDir(dir)
					if err != nil {
						return err
					}

					w := cmd.Root().Writer
					invalid := 0
					for _, r := range results {
						if r.Valid {
							fmt.Fprintf(w, "✓ %s: [%d] %s bet %d, %ds\n", r.File, r.Board.ID, r.Board.Title, r.Board.Bet, r.Board.Limit)
							continue
						}
						invalid++
						fmt.Fprintf(w, "✗ %s\n", r.File)
						for _, e := range r.Errors {
							fmt.Fprintf(w, "    %s\n", e)
						}
					}
					fmt.Fprintf(w, "\n%d files, %d invalid\n", len(results), invalid)
					if invalid > 0 {
						return fmt.Errorf("board validation failed: %d invalid files", invalid)
					}
					return nil
				},
			},
		},
	}
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Inspect archived matches",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Summarise the match archive",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					store, err := openStore(cmd)
					if err != nil {
						return err
					}
					defer store.Close()

					stats, err := store.Stats(ctx)
					if err != nil {
						return err
					}
					w := cmd.Root().Writer
					fmt.Fprintf(w, "Matches: %d\n", stats.Matches)
					fmt.Fprintf(w, "Total staked: %d\n", stats.TotalStaked)
					for tier := 1; len(stats.ByTier) > 0 && tier <= maxTier(stats.ByTier); tier++ {
						if n, ok := stats.ByTier[tier]; ok {
							fmt.Fprintf(w, "  tier %d: %d\n", tier, n)
						}
					}
					if !stats.LastConcludedAt.IsZero() {
						fmt.Fprintf(w, "Last concluded: %s\n", stats.LastConcludedAt.Format(time.RFC3339))
					}
					return nil
				},
			},
		},
	}
}

func maxTier(byTier map[int]int) int {
	highest := 0
	for tier := range byTier {
		highest = max(highest, tier)
	}
	return highest
}
