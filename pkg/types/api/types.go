// Package api defines the resource shapes served under /api/v1. They mirror
// the server's JSON and are safe to import from outside this module.
package api

import (
	"encoding/json"
	"time"
)

// Levels describes the resolution ladder.
type Levels struct {
	Levels  []int   `json:"levels"`
	Default int     `json:"default"`
	ZoomMin float64 `json:"zoom_min"`
	ZoomMax float64 `json:"zoom_max"`
}

// Bounds is an axis-aligned extent in projection coordinates.
type Bounds struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// DatasetStats counts the rows dropped while loading a dataset.
type DatasetStats struct {
	Accepted   int `json:"accepted"`
	NonFinite  int `json:"non_finite"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
}

type Dataset struct {
	Version  string       `json:"version"`
	Records  int          `json:"records"`
	Papers   int          `json:"papers"`
	Authors  int          `json:"authors"`
	Bounds   *Bounds      `json:"bounds,omitempty"`
	Stats    DatasetStats `json:"stats"`
	LoadedAt time.Time    `json:"loaded_at"`
}

type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	DefaultLevel int       `json:"default_level"`
	Messages     int       `json:"messages"`
	Entries      int       `json:"entries"`
	Revision     uint64    `json:"revision"`
}

// Key is a bin's (column, row) cell index.
type Key struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Summary tallies one attribute over a bin's members.
type Summary struct {
	Column   string         `json:"column"`
	Counts   map[string]int `json:"counts"`
	Dominant string         `json:"dominant,omitempty"`
}

// Group is one non-empty bin with the session's selection overlaid.
type Group struct {
	Key      Key      `json:"key"`
	ID       string   `json:"id"`
	Level    int      `json:"level"`
	Centroid Point    `json:"centroid"`
	Box      Bounds   `json:"box"`
	Members  []string `json:"members"`
	Selected bool     `json:"selected"`
	Label    string   `json:"group,omitempty"`
	Summary  *Summary `json:"summary,omitempty"`
}

// Bins is one layer of groups as seen by a session.
type Bins struct {
	SessionID string  `json:"session_id"`
	Level     int     `json:"level"`
	Column    string  `json:"column,omitempty"`
	Version   string  `json:"dataset_version"`
	Source    string  `json:"source"`
	Groups    []Group `json:"groups"`
}

// Facets is the selection state of one key.
type Facets struct {
	Selected    bool   `json:"selected"`
	Highlighted bool   `json:"highlighted"`
	Obscured    bool   `json:"obscured"`
	Group       string `json:"group,omitempty"`
}

type Selection struct {
	SessionID string            `json:"session_id"`
	Revision  uint64            `json:"revision"`
	Entries   map[string]Facets `json:"entries"`
}

// KeyState answers a single-key selection query. Known is false for keys
// no instruction has touched.
type KeyState struct {
	Key    string `json:"key"`
	Known  bool   `json:"known"`
	Facets Facets `json:"facets"`
}

// InstructionKind names a selection directive.
type InstructionKind string

const (
	AddContext       InstructionKind = "ADD_CONTEXT"
	RemoveContext    InstructionKind = "REMOVE_CONTEXT"
	HighlightContext InstructionKind = "HIGHLIGHT_CONTEXT"
	ObscureContext   InstructionKind = "OBSCURE_CONTEXT"
	GroupContext     InstructionKind = "GROUP_CONTEXT"
	GeneralContext   InstructionKind = "GENERAL_CONTEXT"
)

// Valid reports whether k is a known kind.
func (k InstructionKind) Valid() bool {
	switch k {
	case AddContext, RemoveContext, HighlightContext, ObscureContext, GroupContext, GeneralContext:
		return true
	}
	return false
}

// Instruction targets entity identifiers or "bin:column_row" keys.
type Instruction struct {
	Kind    InstructionKind `json:"type"`
	Targets []string        `json:"targets,omitempty"`
	Label   string          `json:"label,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUserBot   Role = "user-bot"
)

// Message is a chat message. A non-zero ID makes redelivery idempotent.
type Message struct {
	ID           int64             `json:"id"`
	Timestamp    string            `json:"timestamp,omitempty"`
	Text         string            `json:"text,omitempty"`
	Role         Role              `json:"role"`
	Citations    []json.RawMessage `json:"citations,omitempty"`
	UserContext  string            `json:"user_context,omitempty"`
	BotContext   string            `json:"bot_context,omitempty"`
	Instructions []Instruction     `json:"instructions,omitempty"`
}

// ApplyResult reports what one posted message changed.
type ApplyResult struct {
	SessionID string   `json:"session_id"`
	MessageID int64    `json:"message_id"`
	Duplicate bool     `json:"duplicate"`
	Applied   int      `json:"applied"`
	Skipped   int      `json:"skipped"`
	Touched   []string `json:"touched"`
	Revision  uint64   `json:"revision"`
}

type UpdateLevelRequest struct {
	Level int `json:"level"`
}
