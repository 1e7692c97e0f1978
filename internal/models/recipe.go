package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DifficultyLevel grades a recipe.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// Ingredient is one entry of a recipe's ordered ingredient list.
type Ingredient struct {
	Name     string `json:"name" validate:"required,max=255"`
	Quantity string `json:"quantity" validate:"required,max=100"`
}

// InstructionStep is one entry of a recipe's ordered instruction list.
type InstructionStep struct {
	StepText string `json:"step_text" validate:"required"`
}

// IngredientList stores ingredients as a JSONB column.
type IngredientList []Ingredient

// Value implements driver.Valuer.
func (l IngredientList) Value() (driver.Value, error) {
	if l == nil {
		l = IngredientList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *IngredientList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// InstructionList stores instruction steps as a JSONB column.
type InstructionList []InstructionStep

// Value implements driver.Valuer.
func (l InstructionList) Value() (driver.Value, error) {
	if l == nil {
		l = InstructionList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *InstructionList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Recipe is a dish taught in one or more courses.
type Recipe struct {
	ID              int64           `db:"id" json:"id"`
	NameEN          string          `db:"name_en" json:"name_en"`
	NameBN          *string         `db:"name_bn" json:"name_bn,omitempty"`
	DescriptionEN   string          `db:"description_en" json:"description_en"`
	DescriptionBN   *string         `db:"description_bn" json:"description_bn,omitempty"`
	Ingredients     IngredientList  `db:"ingredients" json:"ingredients"`
	Instructions    InstructionList `db:"instructions" json:"instructions"`
	PreparationTime int             `db:"preparation_time" json:"preparation_time"`
	DifficultyLevel DifficultyLevel `db:"difficulty_level" json:"difficulty_level"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"-"`
}

// RecipeImage is one photo of a recipe; at most one is flagged primary.
type RecipeImage struct {
	ID           int64  `db:"id" json:"id"`
	RecipeID     int64  `db:"recipe_id" json:"recipe_id"`
	ImagePath    string `db:"image_path" json:"image_path"`
	IsPrimary    bool   `db:"is_primary" json:"is_primary"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
}

// CourseRecipeDetail is a recipe together with its course-day assignment.
type CourseRecipeDetail struct {
	Recipe
	DayNumber *int `db:"day_number" json:"day_number,omitempty"`
}

// RecipeFilter provides filters for listing recipes.
type RecipeFilter struct {
	Difficulty DifficultyLevel
	Search     string
	Page       int
	PageSize   int
}
