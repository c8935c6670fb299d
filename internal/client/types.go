package client

type Actor struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// EventItem is one notification or activity as served by the read API, with
// the actor and targets already joined.
type EventItem struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	ActorID    string `json:"actorId"`
	Actor      *Actor `json:"actor,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
	PostID     string `json:"postId,omitempty"`
	PostSlug   string `json:"postSlug,omitempty"`
	PostTitle  string `json:"postTitle,omitempty"`
	Message    string `json:"message,omitempty"`
	Read       bool   `json:"read"`
	CreatedAt  string `json:"createdAt"`
}

type Pagination struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

type EventPage struct {
	Items       []EventItem `json:"items"`
	Pagination  Pagination  `json:"pagination"`
	UnreadCount int         `json:"unreadCount"`
}

type fetchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Items []EventItem `json:"items"`
	} `json:"data"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	ExpiresAt   int64  `json:"expires_at"`
}

type markReadPayload struct {
	IDs []string `json:"ids"`
}
