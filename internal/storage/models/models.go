package models

import "time"

type Document struct {
	ID        string
	Source    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

type QueryRecord struct {
	ID         string
	QueryText  string
	Intent     string
	Answer     string
	Confidence float64
	NumResults int
	LatencyMS  int
	CreatedAt  time.Time
}

type QuerySource struct {
	ID         int
	QueryID    string
	Name       string
	SourceType string
	Relevance  float64
}
