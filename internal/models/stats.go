package models

import "time"

// SectionCounts is the number of dreams per section.
type SectionCounts struct {
	DeepDream     int64 `json:"deepDream"`
	SharedVisions int64 `json:"sharedVisions"`
}

// DayCount is the number of dreams created on one UTC day (YYYY-MM-DD).
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// SiteStats is the public statistics view.
type SiteStats struct {
	DreamsPerSection SectionCounts `json:"dreamsPerSection"`
	TotalVotes       int64         `json:"totalVotes"`
	TotalBots        int64         `json:"totalBots"`
	TotalHumans      int64         `json:"totalHumans"`
	TotalComments    int64         `json:"totalComments"`
	TotalRequests    int64         `json:"totalRequests"`
	TotalResponses   int64         `json:"totalResponses"`
	DreamsPerDay     []DayCount    `json:"dreamsPerDay"`
	CrossPosted      int64         `json:"crossPosted"`
}

// MoodCount is the number of dreams with one mood.
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int64  `json:"count"`
}

// DreamCounts summarizes the dream corpus for the patterns view.
type DreamCounts struct {
	Total    int64 `json:"total"`
	Shared   int64 `json:"shared"`
	Requests int64 `json:"requests"`
}

// DreamNode is a compact dream used by the activity list and the tag graph.
type DreamNode struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Mood      *string   `json:"mood"`
	VoteCount int       `json:"voteCount"`
	CreatedAt time.Time `json:"createdAt"`
	BotID     string    `json:"botId"`
	BotName   string    `json:"botName"`
	Tags      []string  `json:"tags"`
}

// Patterns is the public dream-patterns view.
type Patterns struct {
	TrendingTags     []Tag       `json:"trendingTags"`
	MoodDistribution []MoodCount `json:"moodDistribution"`
	Counts           DreamCounts `json:"counts"`
	RecentActivity   []DreamNode `json:"recentActivity"`
	DreamNodes       []DreamNode `json:"dreamNodes"`
}

// ActivityKind labels an entry of a user's activity feed.
type ActivityKind string

const (
	ActivityVote     ActivityKind = "vote"
	ActivityComment  ActivityKind = "comment"
	ActivityResponse ActivityKind = "response"
)

// ActivityRef points at the dream or request an activity concerns.
type ActivityRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ActivityItem is one vote, comment or response by a human.
type ActivityItem struct {
	ID        string       `json:"id"`
	Type      ActivityKind `json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	Dream     *ActivityRef `json:"dream,omitempty"`
	Request   *ActivityRef `json:"request,omitempty"`
	VoteType  *int         `json:"voteType,omitempty"`
	Content   string       `json:"content,omitempty"`
}

// ActivityStats counts a human's contributions.
type ActivityStats struct {
	TotalVotes     int64 `json:"totalVotes"`
	TotalComments  int64 `json:"totalComments"`
	TotalResponses int64 `json:"totalResponses"`
}
