package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/game/service"
	"github.com/wricardo/backgammon-server/game/session"
	"github.com/wricardo/backgammon-server/transport/websocket"
)

// MockGameService implements service.GameService for testing
type MockGameService struct {
	HandleFunc        func(ctx context.Context, in service.Intent) error
	CheckTimeoutsFunc func(ctx context.Context) int
	ArchiveSweepFunc  func(ctx context.Context) int

	StatsFunc        func(ctx context.Context) service.ServerStats
	BoardsFunc       func(ctx context.Context) ([]config.Board, error)
	ListSessionsFunc func(ctx context.Context) []service.SessionInfo
	GetSessionFunc   func(ctx context.Context, id string) (*service.GameView, error)
	ProfileFunc      func(ctx context.Context, userID string) (account.PublicProfile, error)
	MatchFunc        func(ctx context.Context, roomID string) (account.MatchRecord, error)
}

func (m *MockGameService) Handle(ctx context.Context, in service.Intent) error {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, in)
	}
	return nil
}

func (m *MockGameService) CheckTimeouts(ctx context.Context) int {
	if m.CheckTimeoutsFunc != nil {
		return m.CheckTimeoutsFunc(ctx)
	}
	return 0
}

func (m *MockGameService) ArchiveSweep(ctx context.Context) int {
	if m.ArchiveSweepFunc != nil {
		return m.ArchiveSweepFunc(ctx)
	}
	return 0
}

func (m *MockGameService) Stats(ctx context.Context) service.ServerStats {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return service.ServerStats{}
}

func (m *MockGameService) Boards(ctx context.Context) ([]config.Board, error) {
	if m.BoardsFunc != nil {
		return m.BoardsFunc(ctx)
	}
	return config.DefaultBoards(), nil
}

func (m *MockGameService) ListSessions(ctx context.Context) []service.SessionInfo {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []service.SessionInfo{}
}

func (m *MockGameService) GetSession(ctx context.Context, id string) (*service.GameView, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, id)
	}
	return nil, session.ErrSessionNotFound
}

func (m *MockGameService) Profile(ctx context.Context, userID string) (account.PublicProfile, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, userID)
	}
	return account.PublicProfile{}, account.ErrUserNotFound
}

func (m *MockGameService) Match(ctx context.Context, roomID string) (account.MatchRecord, error) {
	if m.MatchFunc != nil {
		return m.MatchFunc(ctx, roomID)
	}
	return account.MatchRecord{}, account.ErrMatchNotFound
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockGameService) *Server {
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

func TestListBoards(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(*MockGameService)
		expectedStatus int
		expectedCount  int
	}{
		{
			name:           "Default boards",
			expectedStatus: http.StatusOK,
			expectedCount:  6,
		},
		{
			name: "Catalog error",
			setupMock: func(m *MockGameService) {
				m.BoardsFunc = func(ctx context.Context) ([]config.Board, error) {
					return nil, fmt.Errorf("boards unavailable")
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/boards", nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp struct {
				Count  int            `json:"count"`
				Boards []config.Board `json:"boards"`
			}
			parseResponse(t, w, &resp)
			if resp.Count != tt.expectedCount || len(resp.Boards) != tt.expectedCount {
				t.Errorf("Expected %d boards, got count=%d len=%d", tt.expectedCount, resp.Count, len(resp.Boards))
			}
			if resp.Boards[0].Bet != 100 {
				t.Errorf("Expected first bet 100, got %d", resp.Boards[0].Bet)
			}
		})
	}
}

func TestStats(t *testing.T) {
	mockService := &MockGameService{
		StatsFunc: func(ctx context.Context) service.ServerStats {
			return service.ServerStats{GamesInProgress: 3, PlayersConnected: 7, PlayersWaiting: 1}
		},
	}

	server := setupTestServer(t, mockService)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp service.ServerStats
	parseResponse(t, w, &resp)
	if resp.GamesInProgress != 3 || resp.PlayersConnected != 7 || resp.PlayersWaiting != 1 {
		t.Errorf("Unexpected stats: %+v", resp)
	}
}

func TestListSessions(t *testing.T) {
	base := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	sessions := []service.SessionInfo{
		{ID: "room-1", TierID: 1, CreatedAt: base},
		{ID: "room-2", TierID: 2, CreatedAt: base.Add(time.Minute)},
		{ID: "room-3", TierID: 1, CreatedAt: base.Add(2 * time.Minute)},
	}

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []string
		expectedTotal  int
	}{
		{
			name:           "Newest first by default",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"room-3", "room-2", "room-1"},
			expectedTotal:  3,
		},
		{
			name:           "Ascending with limit",
			query:          "?order=asc&limit=2",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"room-1", "room-2"},
			expectedTotal:  3,
		},
		{
			name:           "Filter by tier",
			query:          "?tier=1",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{"room-3", "room-1"},
			expectedTotal:  2,
		},
		{
			name:           "Invalid tier",
			query:          "?tier=wood",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{
				ListSessionsFunc: func(ctx context.Context) []service.SessionInfo {
					return append([]service.SessionInfo(nil), sessions...)
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp struct {
				Count    int                   `json:"count"`
				Total    int                   `json:"total"`
				Sessions []service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.expectedTotal {
				t.Errorf("Expected total %d, got %d", tt.expectedTotal, resp.Total)
			}
			if resp.Count != len(tt.expectedIDs) {
				t.Fatalf("Expected count %d, got %d", len(tt.expectedIDs), resp.Count)
			}
			for i, id := range tt.expectedIDs {
				if resp.Sessions[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, resp.Sessions[i].ID)
				}
			}
		})
	}
}

func TestGetSession(t *testing.T) {
	tests := []struct {
		name           string
		sessionID      string
		setupMock      func(*MockGameService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:      "Get existing session",
			sessionID: "room-1",
			setupMock: func(m *MockGameService) {
				m.GetSessionFunc = func(ctx context.Context, id string) (*service.GameView, error) {
					if id != "room-1" {
						return nil, session.ErrSessionNotFound
					}
					g := engine.NewGame(engine.NewGameParams{
						RoomID: "room-1", TierID: 1, Bet: 100, Tip: 0.05,
						White: "alice", Black: "bob", First: engine.White, Now: time.Now(),
					})
					return &service.GameView{Game: g, Phase: engine.PhaseAwaitingRoll}, nil
				}
			},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.GameView
				parseResponse(t, w, &resp)
				if resp.Game == nil || resp.Game.RoomID != "room-1" {
					t.Errorf("Expected room-1 in response, got %+v", resp.Game)
				}
				if resp.Phase != engine.PhaseAwaitingRoll {
					t.Errorf("Expected phase %s, got %s", engine.PhaseAwaitingRoll, resp.Phase)
				}
			},
		},
		{
			name:           "Session not found",
			sessionID:      "nonexistent",
			expectedStatus: http.StatusNotFound,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "session not found" {
					t.Errorf("Expected error 'session not found', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			req := makeRequest("GET", "/api/sessions/"+tt.sessionID, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.sessionID})

			server.handleGetSession(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestGetMatch(t *testing.T) {
	tests := []struct {
		name           string
		roomID         string
		setupMock      func(*MockGameService)
		expectedStatus int
	}{
		{
			name:   "Archived match",
			roomID: "room-9",
			setupMock: func(m *MockGameService) {
				m.MatchFunc = func(ctx context.Context, roomID string) (account.MatchRecord, error) {
					return account.MatchRecord{RoomID: roomID, Winner: engine.Black, Stake: 100, Multiplier: 2}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Unknown match",
			roomID:         "room-x",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "Storage failure",
			roomID: "room-9",
			setupMock: func(m *MockGameService) {
				m.MatchFunc = func(ctx context.Context, roomID string) (account.MatchRecord, error) {
					return account.MatchRecord{}, fmt.Errorf("disk I/O error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockGameService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/matches/"+tt.roomID, nil))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				var resp account.MatchRecord
				parseResponse(t, w, &resp)
				if resp.RoomID != tt.roomID || resp.Winner != engine.Black {
					t.Errorf("Unexpected match: %+v", resp)
				}
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	mockService := &MockGameService{
		ProfileFunc: func(ctx context.Context, userID string) (account.PublicProfile, error) {
			if userID != "alice" {
				return account.PublicProfile{}, account.ErrUserNotFound
			}
			return account.PublicProfile{ID: "alice", Username: "Alice", Rating: 1216, Experience: 3}, nil
		},
	}
	server := setupTestServer(t, mockService)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/users/alice", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var resp map[string]interface{}
		parseResponse(t, w, &resp)
		if resp["username"] != "Alice" {
			t.Errorf("Expected username Alice, got %v", resp["username"])
		}
		if _, ok := resp["balance"]; ok {
			t.Error("Public profile must not expose the balance")
		}
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", "/api/users/mallory", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	parseResponse(t, w, &resp)
	if resp["status"] != "healthy" {
		t.Errorf("Expected status healthy, got %v", resp["status"])
	}
}

func TestWebSocket(t *testing.T) {
	server := setupTestServer(t, &MockGameService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)

	server.handleWebSocket(w, req)

	// Without upgrade headers the upgrader answers 400.
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
