// Package state persists cells, conversations and cached suggestions in a
// local SQLite database.
//
// Each cell is stored as its canonical JSON next to the columns needed to
// list and order it. Writes are single transactions.
package state

import (
	"context"
	"errors"

	"github.com/leapstack-labs/lumen/internal/cell"
)

// ErrCellNotFound is returned when no cell has the requested id.
var ErrCellNotFound = errors.New("cell not found")

// CellStore is the persistence contract of the orchestrator and transports.
type CellStore interface {
	// Append stores c as the next cell of the conversation, creating the
	// conversation when needed.
	Append(ctx context.Context, conversationID string, c *cell.Cell) error

	// Update applies p to the stored cell and returns the updated cell.
	Update(ctx context.Context, id string, p Patch) (*cell.Cell, error)

	// Delete removes a cell.
	Delete(ctx context.Context, id string) error

	// Get returns one cell.
	Get(ctx context.Context, id string) (*cell.Cell, error)

	// LatestForConversation returns the last limit cells of a conversation
	// in position order. limit <= 0 returns every cell.
	LatestForConversation(ctx context.Context, conversationID string, limit int) ([]*cell.Cell, error)

	// NextPosition returns the position the next appended cell will take.
	NextPosition(ctx context.Context, conversationID string) (int, error)

	// ConversationOf returns the conversation a cell belongs to.
	ConversationOf(ctx context.Context, id string) (string, error)
}

// SuggestionCache stores generated questions keyed by schema hash.
type SuggestionCache interface {
	Suggestions(ctx context.Context, schemaHash string) ([]string, bool, error)
	SaveSuggestions(ctx context.Context, schemaHash string, questions []string) error
}

// Patch lists the mutable fields of a stored cell. Nil fields are left
// unchanged.
type Patch struct {
	Title *string `json:"title,omitempty"`
}

// Conversation summarizes one conversation.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CellCount int    `json:"cell_count"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
