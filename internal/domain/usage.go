package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerationUsage records one text-generation call for cost tracking.
// Purely observational; nothing in the engine reads it back.
type GenerationUsage struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Model            string             `bson:"model" json:"model"`
	PromptTokens     int                `bson:"promptTokens" json:"promptTokens"`
	CompletionTokens int                `bson:"completionTokens" json:"completionTokens"`
	CostUSD          float64            `bson:"costUsd" json:"costUsd"`
	Purpose          string             `bson:"purpose,omitempty" json:"purpose,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
