package models

import "time"

type Article struct {
	Slug        string    `bson:"slug" json:"slug"`
	Title       string    `bson:"title" json:"title"`
	Summary     string    `bson:"summary" json:"summary"`
	Body        string    `bson:"body" json:"body,omitempty"`
	Category    string    `bson:"category" json:"category"`
	CoverURL    string    `bson:"coverUrl,omitempty" json:"coverUrl,omitempty"`
	PublishedAt time.Time `bson:"publishedAt" json:"publishedAt"`
}

type RoadSign struct {
	Code        string `bson:"code" json:"code"`
	Name        string `bson:"name" json:"name"`
	Category    string `bson:"category" json:"category"`
	Description string `bson:"description" json:"description"`
	ImageURL    string `bson:"imageUrl" json:"imageUrl"`
}

type Video struct {
	ID              string    `bson:"id" json:"id"`
	Title           string    `bson:"title" json:"title"`
	URL             string    `bson:"url" json:"url"`
	Category        string    `bson:"category" json:"category"`
	DurationSeconds int       `bson:"durationSeconds" json:"durationSeconds"`
	ThumbnailURL    string    `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}

type QuizQuestion struct {
	ID           string   `bson:"id" json:"id"`
	Category     string   `bson:"category" json:"category"`
	Prompt       string   `bson:"prompt" json:"prompt"`
	ImageURL     string   `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Options      []string `bson:"options" json:"options"`
	CorrectIndex int      `bson:"correctIndex" json:"correctIndex"`
	Explanation  string   `bson:"explanation" json:"explanation,omitempty"`
}

// PublicQuestion hides the answer from quiz takers.
type PublicQuestion struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Prompt   string   `json:"prompt"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Options  []string `json:"options"`
}

type QuizAnswer struct {
	QuestionID  string `bson:"questionId" json:"questionId" binding:"required"`
	ChosenIndex int    `bson:"chosenIndex" json:"chosenIndex" binding:"gte=0"`
	Correct     bool   `bson:"correct" json:"correct"`
}

type QuizAttempt struct {
	ID        string       `bson:"id" json:"id"`
	UserID    string       `bson:"userId" json:"userId"`
	Category  string       `bson:"category,omitempty" json:"category,omitempty"`
	Answers   []QuizAnswer `bson:"answers" json:"answers"`
	Score     int          `bson:"score" json:"score"`
	Total     int          `bson:"total" json:"total"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
}
