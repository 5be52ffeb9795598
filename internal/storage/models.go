package storage

// Asset is a published image.
type Asset struct {
	SHA256      string `json:"sha256"`
	ObjectKey   string `json:"object_key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Backend     string `json:"backend"` // "local" or "r2"
	CreatedAt   int64  `json:"created_at"`
}

// Member is a chat-channel follower that can receive a broadcast.
type Member struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Blocked   bool     `json:"blocked"` // blocked members never receive messages
	Tags      []string `json:"tags"`
	UpdatedAt int64    `json:"updated_at"`
}

// TagCount is a tag with the number of reachable members carrying it.
type TagCount struct {
	Tag     string `json:"tag"`
	Members int64  `json:"members"`
}
