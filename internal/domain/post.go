package domain

import "github.com/google/uuid"

// Post is a piece of content written by exactly one user
type Post struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	AuthorID uuid.UUID `json:"author_id"`
}

// NewPost creates a post owned by authorID
func NewPost(authorID uuid.UUID, title, content string) Post {
	return Post{
		ID:       uuid.New(),
		Title:    title,
		Content:  content,
		AuthorID: authorID,
	}
}

func (*Post) Kind() Kind { return KindPost }

func (p *Post) Key() string { return p.ID.String() }
