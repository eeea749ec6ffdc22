package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
	"server/internal/infra"
)

// StyleRepositoryPG implements the read-only style catalog lookup.
type StyleRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewStyleRepository constructs a style repository.
func NewStyleRepository(pool *pgxpool.Pool) *StyleRepositoryPG {
	return &StyleRepositoryPG{pool: pool}
}

const styleColumns = `id, key, name, base_model, prompt_prefix, prompt_suffix, negative_prompt,
controlnet_module, controlnet_weight, guidance_scale, strength, prompt_template, params, is_active, created_at`

// GetByID fetches a style preset regardless of its active flag (worker path:
// a queued job keeps its style even if it was deactivated afterwards).
func (r *StyleRepositoryPG) GetByID(ctx context.Context, styleID string) (*domain.StyleConfig, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+styleColumns+`
FROM style_configs
WHERE id = $1;
`, styleID)
	return scanStyle(row)
}

// GetActiveByID fetches a style preset only when it is active (create path).
func (r *StyleRepositoryPG) GetActiveByID(ctx context.Context, styleID string) (*domain.StyleConfig, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+styleColumns+`
FROM style_configs
WHERE id = $1 AND is_active = true;
`, styleID)
	return scanStyle(row)
}

func scanStyle(row pgx.Row) (*domain.StyleConfig, error) {
	var (
		style        domain.StyleConfig
		prefix       *string
		suffix       *string
		negative     *string
		module       *string
		baseModel    *string
		templateJSON []byte
		paramsJSON   []byte
	)
	if err := row.Scan(
		&style.ID, &style.Key, &style.Name, &baseModel, &prefix, &suffix, &negative,
		&module, &style.ControlnetWeight, &style.GuidanceScale, &style.Strength,
		&templateJSON, &paramsJSON, &style.IsActive, &style.CreatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	style.BaseModel = derefString(baseModel)
	style.PromptPrefix = derefString(prefix)
	style.PromptSuffix = derefString(suffix)
	style.NegativePrompt = derefString(negative)
	style.ControlnetModule = derefString(module)

	if len(templateJSON) > 0 {
		var tpl domain.PromptTemplate
		if err := json.Unmarshal(templateJSON, &tpl); err != nil {
			return nil, fmt.Errorf("decode prompt template: %w", err)
		}
		style.PromptTemplate = &tpl
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &style.Params); err != nil {
			return nil, fmt.Errorf("decode style params: %w", err)
		}
	}
	return &style, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.StyleRepository = (*StyleRepositoryPG)(nil)
