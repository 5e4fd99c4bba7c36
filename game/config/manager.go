package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Manager handles board loading and caching
type Manager struct {
	boardDir string
	boards   map[string]*Board
	mu       sync.RWMutex
}

// NewManager creates a new board manager
func NewManager(boardDir string) (*Manager, error) {
	if _, err := os.Stat(boardDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("board directory does not exist: %s", boardDir)
	}

	return &Manager{
		boardDir: boardDir,
		boards:   make(map[string]*Board),
	}, nil
}

// LoadBoard loads a board file by name
func (m *Manager) LoadBoard(name string) (*Board, error) {
	name = strings.TrimSuffix(name, ".json")

	m.mu.RLock()
	if board, exists := m.boards[name]; exists {
		m.mu.RUnlock()
		return board, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if board, exists := m.boards[name]; exists {
		return board, nil
	}

	data, err := os.ReadFile(filepath.Join(m.boardDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}

	var board Board
	if err := json.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}
	if err := ValidateBoard(&board); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}

	m.boards[name] = &board
	return &board, nil
}

// ListBoards returns every valid board ordered by id. When the directory holds
// no boards the built-in tiers are returned.
func (m *Manager) ListBoards() ([]Board, error) {
	entries, err := os.ReadDir(m.boardDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read board directory: %w", err)
	}

	var boards []Board
	seen := make(map[int]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		board, err := m.LoadBoard(entry.Name())
		if err != nil {
			// Skip invalid boards
			continue
		}
		if seen[board.ID] {
			continue
		}
		seen[board.ID] = true
		boards = append(boards, *board)
	}

	if len(boards) == 0 {
		return DefaultBoards(), nil
	}

	sort.Slice(boards, func(i, j int) bool { return boards[i].ID < boards[j].ID })
	return boards, nil
}

// Board returns the board with the given id
func (m *Manager) Board(id int) (Board, error) {
	boards, err := m.ListBoards()
	if err != nil {
		return Board{}, err
	}
	for _, b := range boards {
		if b.ID == id {
			return b, nil
		}
	}
	return Board{}, ErrBoardNotFound
}

// SaveBoard validates and writes a board file
func (m *Manager) SaveBoard(name string, board *Board) error {
	if err := ValidateBoard(board); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBoard, err)
	}

	name = strings.TrimSuffix(name, ".json")
	data, err := json.MarshalIndent(board, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.boardDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write board file: %w", err)
	}

	m.mu.Lock()
	m.boards[name] = board
	m.mu.Unlock()

	return nil
}

// RefreshCache drops every cached board so the next read goes to disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boards = make(map[string]*Board)
}
