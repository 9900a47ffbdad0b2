package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// LearnedPattern is a behavioural pattern the assistant inferred for a user.
// Confidence decays over time and is never allowed below the configured floor.
type LearnedPattern struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	PatternKey         string     `gorm:"type:varchar(255);not null" json:"patternKey"`
	PatternValue       *string    `gorm:"type:text" json:"patternValue,omitempty"`
	Confidence         float64    `gorm:"not null;default:0.5" json:"confidence"`
	NeedsRecalculation bool       `gorm:"not null;default:false" json:"needsRecalculation"`
	LastDecayedAt      *time.Time `json:"lastDecayedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func (LearnedPattern) TableName() string {
	return "clara_learned_patterns"
}

// Memory is a long-term memory entry kept by the assistant.
type Memory struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"userId"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Importance    float64    `gorm:"not null;default:0.5" json:"importance"`
	LastDecayedAt *time.Time `json:"lastDecayedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func (Memory) TableName() string {
	return "clara_memories"
}

// DecayRun records the aggregate outcome of one decay pass.
type DecayRun struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StartedAt  time.Time      `gorm:"not null;index" json:"startedAt"`
	FinishedAt time.Time      `gorm:"not null" json:"finishedAt"`
	Summary    datatypes.JSON `gorm:"type:jsonb" json:"summary"`
}

func (DecayRun) TableName() string {
	return "decay_runs"
}

// WeightStats are aggregate statistics over a set of decayable weights.
type WeightStats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type PatternDecaySummary struct {
	Before  WeightStats `json:"before"`
	After   WeightStats `json:"after"`
	Decayed int         `json:"decayed"`
	Flagged int         `json:"flagged"`
}

type MemoryDecaySummary struct {
	Before  WeightStats `json:"before"`
	After   WeightStats `json:"after"`
	Decayed int         `json:"decayed"`
	Deleted int         `json:"deleted"`
}

type DecaySummary struct {
	Patterns PatternDecaySummary `json:"patterns"`
	Memories MemoryDecaySummary  `json:"memories"`
}
