package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// RecipeRepository handles persistence of recipes and their images.
type RecipeRepository struct {
	db *sqlx.DB
}

// NewRecipeRepository constructs the repository.
func NewRecipeRepository(db *sqlx.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

const recipeColumns = `id, name_en, name_bn, description_en, description_bn, ingredients,
        instructions, preparation_time, difficulty_level, created_at, updated_at, deleted_at`

// List returns recipes matching the filter.
func (r *RecipeRepository) List(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("difficulty_level = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	if filter.Search != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(name_en ILIKE $%d OR name_bn ILIKE $%d)",
			len(args)+1, len(args)+1))
		args = append(args, pattern)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM recipes%s ORDER BY name_en ASC LIMIT %d OFFSET %d",
		recipeColumns, clause, size, offset)

	var recipes []models.Recipe
	if err := r.db.SelectContext(ctx, &recipes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM recipes" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}
	return recipes, total, nil
}

// FindByID returns a recipe by ID.
func (r *RecipeRepository) FindByID(ctx context.Context, id int64) (*models.Recipe, error) {
	const query = `SELECT ` + recipeColumns + ` FROM recipes WHERE id = $1 AND deleted_at IS NULL`
	var recipe models.Recipe
	if err := r.db.GetContext(ctx, &recipe, query, id); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Create persists a new recipe.
func (r *RecipeRepository) Create(ctx context.Context, recipe *models.Recipe) error {
	now := time.Now().UTC()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	const query = `INSERT INTO recipes (name_en, name_bn, description_en, description_bn, ingredients,
        instructions, preparation_time, difficulty_level, created_at, updated_at)
        VALUES (:name_en, :name_bn, :description_en, :description_bn, :ingredients,
        :instructions, :preparation_time, :difficulty_level, :created_at, :updated_at)
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, recipe)
	if err != nil {
		return fmt.Errorf("create recipe: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&recipe.ID); err != nil {
			return fmt.Errorf("scan recipe id: %w", err)
		}
	}
	return nil
}

// Update persists changes to a recipe.
func (r *RecipeRepository) Update(ctx context.Context, recipe *models.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()
	const query = `UPDATE recipes SET name_en = :name_en, name_bn = :name_bn,
        description_en = :description_en, description_bn = :description_bn,
        ingredients = :ingredients, instructions = :instructions,
        preparation_time = :preparation_time, difficulty_level = :difficulty_level,
        updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	res, err := r.db.NamedExecContext(ctx, query, recipe)
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	return requireRowsAffected(res)
}

// SoftDelete marks a recipe as deleted. Course attachments keep their rows.
func (r *RecipeRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE recipes SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	return requireRowsAffected(res)
}

// AddImage attaches a photo to a recipe. When the image is flagged primary,
// the previous primary is demoted inside the same transaction.
func (r *RecipeRepository) AddImage(ctx context.Context, image *models.RecipeImage) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin image transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if image.IsPrimary {
		const demoteQuery = `UPDATE recipe_images SET is_primary = FALSE WHERE recipe_id = $1 AND is_primary`
		if _, err = tx.ExecContext(ctx, demoteQuery, image.RecipeID); err != nil {
			return fmt.Errorf("demote primary image: %w", err)
		}
	}

	const insertQuery = `INSERT INTO recipe_images (recipe_id, image_path, is_primary, display_order)
        VALUES ($1, $2, $3, $4) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertQuery,
		image.RecipeID, image.ImagePath, image.IsPrimary, image.DisplayOrder,
	).Scan(&image.ID); err != nil {
		return fmt.Errorf("insert recipe image: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit image add: %w", err)
	}
	return nil
}

// ListImages returns a recipe's images, primary first.
func (r *RecipeRepository) ListImages(ctx context.Context, recipeID int64) ([]models.RecipeImage, error) {
	const query = `SELECT id, recipe_id, image_path, is_primary, display_order
        FROM recipe_images WHERE recipe_id = $1
        ORDER BY is_primary DESC, display_order ASC, id ASC`
	var images []models.RecipeImage
	if err := r.db.SelectContext(ctx, &images, query, recipeID); err != nil {
		return nil, fmt.Errorf("list recipe images: %w", err)
	}
	return images, nil
}

// DeleteImage removes a recipe image row.
func (r *RecipeRepository) DeleteImage(ctx context.Context, id int64) error {
	const query = `DELETE FROM recipe_images WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete recipe image: %w", err)
	}
	return requireRowsAffected(res)
}
