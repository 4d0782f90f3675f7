package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Comment is embedded in its post, ordered by insertion.
type Comment struct {
	ID        bson.ObjectID `json:"id" bson:"_id"`
	Author    bson.ObjectID `json:"author" bson:"author"`
	Content   string        `json:"content" bson:"content" validate:"required,max=500"`
	CreatedAt time.Time     `json:"createdAt" bson:"created_at"`
}

// Post is a feed entry. Likes is a set of user ids; a user appears at most once.
type Post struct {
	ID        bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	Author    bson.ObjectID   `json:"author" bson:"author"`
	Title     string          `json:"title" bson:"title" validate:"required,max=200"`
	Content   string          `json:"content" bson:"content" validate:"required"`
	Likes     []bson.ObjectID `json:"likes" bson:"likes"`
	Comments  []Comment       `json:"comments" bson:"comments"`
	CreatedAt time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" bson:"updated_at"`
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID bson.ObjectID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// FeedPost is a post with its author resolved for rendering.
type FeedPost struct {
	Post
	AuthorInfo AuthorSummary `json:"authorInfo"`
	LikesCount int           `json:"likesCount"`
}
