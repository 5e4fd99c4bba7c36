package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Backgammon Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Backgammon Server - MCP Interface

This is a read-only client that proxies requests to the REST API server.
Games are played over the WebSocket endpoint; these tools let you watch them.

AVAILABLE TOOLS:
- list_boards: Stake tiers with bet and clock
- server_stats: Games in progress, connected and waiting players
- list_sessions: Live games
- get_session: Board, dice and cube of one live game
- get_match: An archived match
- get_profile: A player's public profile
- game_rules: Movement, doubling and settlement rules`),
	)

	c.registerTools()
}

func stringArg(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_boards",
		Description: "List the stake tiers players can queue for",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListBoards)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get the number of games in progress, connected players and players waiting for an opponent",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleServerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List live game sessions, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tier_id": map[string]interface{}{
					"type":        "number",
					"description": "Only sessions at this stake tier (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of sessions to return (optional)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get the board, dice and doubling cube of a live session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": stringArg("Room ID of the session"),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get an archived match by room ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": stringArg("Room ID of the archived match"),
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_profile",
		Description: "Get a player's public profile (rating and experience)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": stringArg("User ID"),
			},
			Required: []string{"user_id"},
		},
	}, c.handleGetProfile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Get the rules enforced by the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, endpoint, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func (c *Client) handleListBoards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int            `json:"count"`
		Boards []config.Board `json:"boards"`
	}

	if err := c.apiCall("GET", "/api/boards", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoards(response.Boards)), nil
}

func (c *Client) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.ServerStats
	if err := c.apiCall("GET", "/api/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Games in progress: %d\nPlayers connected: %d\nPlayers waiting: %d\n",
		stats.GamesInProgress, stats.PlayersConnected, stats.PlayersWaiting)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	query := url.Values{}
	if tier, ok := args["tier_id"].(float64); ok {
		query.Set("tier", fmt.Sprintf("%d", int(tier)))
	}
	if limit, ok := args["limit"].(float64); ok {
		query.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	path := "/api/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var response struct {
		Count    int                   `json:"count"`
		Total    int                   `json:"total"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Sessions (%d of %d):\n\n", response.Count, response.Total)
	for _, s := range response.Sessions {
		result += formatSessionLine(s)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var view service.GameView
	err := c.apiCall("GET", "/api/sessions/"+url.PathEscape(sessionID), nil, &view)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameView(&view)), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var match account.MatchRecord
	if err := c.apiCall("GET", "/api/matches/"+url.PathEscape(roomID), nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatch(&match)), nil
}

func (c *Client) handleGetProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, _ := arguments(request)["user_id"].(string)
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	var profile account.PublicProfile
	if err := c.apiCall("GET", "/api/users/"+url.PathEscape(userID), nil, &profile); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Player: %s (%s)\nRating: %.0f\nGames played: %d\n",
		profile.Username, profile.ID, profile.Rating, profile.Experience)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := `Backgammon Server - Rules

BOARD:
• Points 1-24. White moves from 24 toward 1 and bears off at 0; its bar is 25.
• Black moves from 1 toward 24 and bears off at 25; its bar is 0.
• A point held by two or more opposing stones is blocked. A single opposing stone is hit and sent to the bar.

TURN:
• Roll two dice. Doubles give four moves. Dice are kept in descending order.
• Stones on the bar must enter before anything else moves.
• Bearing off is allowed once all fifteen stones are in the home board.
• You must use as many dice as possible, and the larger die when only one can be used.
• Moves can be undone until the turn is ended. Each turn has a clock; running out forfeits the game.

DOUBLING:
• Before rolling, a player may offer to double the stake. The opponent accepts or declines.
• Declining (or making any other play while the offer stands) concedes the game at the current stake.
• The same player cannot double twice in a row. Doubling is capped by what both players can afford.

SETTLEMENT:
• The winner takes back their own escrow plus the loser's escrow minus the house tip.
• Ratings move by an Elo-style update; both players gain one game of experience.`

	return mcp.NewToolResultText(rules), nil
}

// Formatting helpers

func formatBoards(boards []config.Board) string {
	var result strings.Builder
	fmt.Fprintf(&result, "Stake Tiers (%d):\n\n", len(boards))
	for _, b := range boards {
		fmt.Fprintf(&result, "- [%d] %s: bet %d, %ds per turn\n", b.ID, b.Title, b.Bet, b.Limit)
	}
	return result.String()
}

func formatSessionLine(s service.SessionInfo) string {
	white := s.Players[engine.White].Username
	black := s.Players[engine.Black].Username
	status := string(s.Phase)
	if s.Won.Valid() {
		status = fmt.Sprintf("won by %s", s.Won)
	}
	return fmt.Sprintf("- %s (Tier %d, %s vs %s, x%d, %s, Created: %s)\n",
		s.ID, s.TierID, orDash(white), orDash(black), s.Multiplier, status, s.CreatedAt.Format("15:04:05"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatGameView(view *service.GameView) string {
	g := view.Game
	if g == nil {
		return "No game state available"
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Room: %s (Tier %d)\n", g.RoomID, g.TierID)
	fmt.Fprintf(&result, "White: %s%s\n", orDash(view.Players[engine.White].Username), connectedSuffix(view, engine.White))
	fmt.Fprintf(&result, "Black: %s%s\n", orDash(view.Players[engine.Black].Username), connectedSuffix(view, engine.Black))
	fmt.Fprintf(&result, "Phase: %s\n", view.Phase)
	fmt.Fprintf(&result, "Turn: %s\n", g.Turn)
	if len(g.Dice) > 0 {
		fmt.Fprintf(&result, "Dice: %v\n", g.Dice)
	}
	fmt.Fprintf(&result, "Cube: x%d (stake %d)\n", g.Multiplier, g.CurrentAmountBet/2)
	if g.OfferPending() {
		fmt.Fprintf(&result, "Double offered by %s: x%d\n", g.Doublers[len(g.Doublers)-1], g.PendingMultiplier)
	}
	if g.Won.Valid() {
		fmt.Fprintf(&result, "🏆 Won by %s\n", g.Won)
	}

	result.WriteString("\nPoints:\n")
	for i := 24; i >= 1; i-- {
		w, b := g.White.Position[i], g.Black.Position[i]
		switch {
		case w > 0:
			fmt.Fprintf(&result, "  %2d: W%d\n", i, w)
		case b > 0:
			fmt.Fprintf(&result, "  %2d: B%d\n", i, b)
		}
	}
	fmt.Fprintf(&result, "Bar: W%d B%d\n", g.White.Position[engine.BarIndex(engine.White)], g.Black.Position[engine.BarIndex(engine.Black)])
	fmt.Fprintf(&result, "Off: W%d B%d\n", g.White.Position[engine.OutIndex(engine.White)], g.Black.Position[engine.OutIndex(engine.Black)])

	for _, side := range []struct {
		color  engine.Color
		player engine.Player
	}{{engine.White, g.White}, {engine.Black, g.Black}} {
		if side.player.Message != "" {
			fmt.Fprintf(&result, "%s says: %q\n", side.color, side.player.Message)
		}
	}

	return result.String()
}

func connectedSuffix(view *service.GameView, c engine.Color) string {
	if view.Connected[c] {
		return ""
	}
	return " (disconnected)"
}

func formatMatch(m *account.MatchRecord) string {
	return fmt.Sprintf("Match: %s (Tier %d)\nWhite: %s\nBlack: %s\nWinner: %s\nStake: %d (x%d)\nStarted: %s\nConcluded: %s\n",
		m.RoomID, m.TierID, m.WhiteID, m.BlackID, m.Winner, m.Stake, m.Multiplier,
		m.StartedAt.Format("2006-01-02 15:04:05"), m.ConcludedAt.Format("2006-01-02 15:04:05"))
}
