package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seolab-api/internal/models"
)

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

const generationColumns = `trace_id, brand, topic, language, request_json, COALESCE(html, ''),
	meta_json, tokens, duration_ms, status, error_message, created_at`

func (r *GenerationRepo) Create(ctx context.Context, g *models.Generation) error {
	requestBytes, err := json.Marshal(g.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	var metaBytes []byte
	if g.Meta != nil {
		if metaBytes, err = json.Marshal(g.Meta); err != nil {
			return fmt.Errorf("failed to encode meta: %w", err)
		}
	}

	var html *string
	if g.HTML != "" {
		html = &g.HTML
	}

	query := `INSERT INTO generations (trace_id, brand, topic, language, request_json, html, meta_json,
		tokens, duration_ms, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		g.TraceID, g.Brand, g.Topic, g.Language, requestBytes, html, metaBytes,
		g.Tokens, g.DurationMs, g.Status, g.Error,
	).Scan(&g.CreatedAt)
}

func (r *GenerationRepo) GetByTraceID(ctx context.Context, traceID string) (*models.Generation, error) {
	query := "SELECT " + generationColumns + " FROM generations WHERE trace_id = $1"

	g, err := scanGeneration(r.pool.QueryRow(ctx, query, traceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// List returns generations newest first, optionally for one brand, with the
// total count of matching rows.
func (r *GenerationRepo) List(ctx context.Context, brand string, limit, offset int) ([]*models.Generation, int, error) {
	var args []interface{}
	argIdx := 1
	where := ""

	if brand != "" {
		where = fmt.Sprintf("WHERE brand = $%d", argIdx)
		args = append(args, brand)
		argIdx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM generations "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT %s FROM generations %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		generationColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	generations := make([]*models.Generation, 0, limit)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, 0, err
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return generations, total, nil
}

func (r *GenerationRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanGeneration(row pgx.Row) (*models.Generation, error) {
	g := &models.Generation{}
	var requestBytes, metaBytes []byte
	err := row.Scan(
		&g.TraceID, &g.Brand, &g.Topic, &g.Language, &requestBytes, &g.HTML,
		&metaBytes, &g.Tokens, &g.DurationMs, &g.Status, &g.Error, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(requestBytes) > 0 {
		if err := json.Unmarshal(requestBytes, &g.Request); err != nil {
			return nil, fmt.Errorf("failed to decode request: %w", err)
		}
	}
	if len(metaBytes) > 0 {
		g.Meta = &models.Meta{}
		if err := json.Unmarshal(metaBytes, g.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta: %w", err)
		}
	}
	return g, nil
}
