package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/backgammon-server/game/config"
)

// ValidationResult captures the outcome of validating a single board file.
type ValidationResult struct {
	File   string
	Board  config.Board
	Valid  bool
	Errors []string
}

// validateBoardFile loads and validates a single board JSON file.
func validateBoardFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result.Board); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	if err := config.ValidateBoard(&result.Board); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	return result
}

// validateBoardDir validates every *.json file in dir and flags duplicate ids.
func validateBoardDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	owners := make(map[int]string)
	for _, file := range files {
		result := validateBoardFile(file)
		if result.Valid {
			if first, dup := owners[result.Board.ID]; dup {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("id %d already used by %s", result.Board.ID, first))
			} else {
				owners[result.Board.ID] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}
