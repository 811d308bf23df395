package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crynxmartinez/dueler/internal/game"
	"github.com/crynxmartinez/dueler/internal/game/state"
)

// ErrMatchNotFound is returned when no match row exists for the id.
var ErrMatchNotFound = errors.New("match not found")

// MatchRecord is one persisted match with its latest state snapshot.
type MatchRecord struct {
	ID        string
	GameID    string
	Player1ID string
	Player2ID string
	Status    state.MatchStatus
	State     *state.GameState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchRepository stores match rows and their state snapshots.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository builds a repository over the shared pool.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// CreateMatch inserts a new match with its initial snapshot.
func (r *MatchRepository) CreateMatch(ctx context.Context, rec *MatchRecord) error {
	snapshot, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO matches (id, game_id, player1_id, player2_id, status, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		rec.ID, rec.GameID, rec.Player1ID, rec.Player2ID, rec.Status, snapshot)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", rec.ID, err)
	}
	return nil
}

// GetMatch loads a match and deserializes its snapshot.
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*MatchRecord, error) {
	var (
		rec      MatchRecord
		snapshot []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, game_id, player1_id, player2_id, status, state, created_at, updated_at
		FROM matches WHERE id = $1`, id).
		Scan(&rec.ID, &rec.GameID, &rec.Player1ID, &rec.Player2ID, &rec.Status, &snapshot, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select match %s: %w", id, err)
	}

	rec.State = &state.GameState{}
	if err := json.Unmarshal(snapshot, rec.State); err != nil {
		return nil, fmt.Errorf("unmarshal match state %s: %w", id, err)
	}
	return &rec, nil
}

// SaveState replaces the match's snapshot and status.
func (r *MatchRepository) SaveState(ctx context.Context, id string, st *state.GameState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE matches SET state = $2, status = $3, updated_at = now() WHERE id = $1`,
		id, snapshot, st.Status)
	if err != nil {
		return fmt.Errorf("update match %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// GameRepository loads the designer-authored content of a game: its rule
// cards and card definitions, both carrying effect graphs as jsonb.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository builds a repository over the shared pool.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// ListRules returns every rule card of the game, enabled or not, in
// ascending order. The engine filters and re-sorts on construction.
func (r *GameRepository) ListRules(ctx context.Context, gameID string) ([]game.RuleCard, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, flow_data, is_enabled, rule_order
		FROM rule_cards WHERE game_id = $1 ORDER BY rule_order`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select rules for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var rules []game.RuleCard
	for rows.Next() {
		var (
			rule     game.RuleCard
			flowData []byte
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Category, &flowData, &rule.IsEnabled, &rule.Order); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if len(flowData) > 0 {
			if err := json.Unmarshal(flowData, &rule.FlowData); err != nil {
				return nil, fmt.Errorf("unmarshal flow for rule %s: %w", rule.ID, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ListCards returns every card definition of the game.
func (r *GameRepository) ListCards(ctx context.Context, gameID string) ([]game.CardDefinition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, type, cost, attack, health, effect_flow, keywords, properties
		FROM cards WHERE game_id = $1 ORDER BY name`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select cards for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var cards []game.CardDefinition
	for rows.Next() {
		var (
			card       game.CardDefinition
			effectFlow []byte
			keywords   []byte
			properties []byte
		)
		if err := rows.Scan(&card.ID, &card.Name, &card.Type, &card.Cost, &card.Attack, &card.Health, &effectFlow, &keywords, &properties); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if len(effectFlow) > 0 {
			if err := json.Unmarshal(effectFlow, &card.EffectFlow); err != nil {
				return nil, fmt.Errorf("unmarshal effect flow for card %s: %w", card.ID, err)
			}
		}
		if len(keywords) > 0 {
			if err := json.Unmarshal(keywords, &card.Keywords); err != nil {
				return nil, fmt.Errorf("unmarshal keywords for card %s: %w", card.ID, err)
			}
		}
		if len(properties) > 0 {
			if err := json.Unmarshal(properties, &card.Properties); err != nil {
				return nil, fmt.Errorf("unmarshal properties for card %s: %w", card.ID, err)
			}
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
