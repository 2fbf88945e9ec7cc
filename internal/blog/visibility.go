package blog

import "time"

// VisibleTo reports whether the post can be read by the given viewer.
// The author always sees their own posts. Everybody else, anonymous viewers
// included, sees a post only when it is published, its category is published,
// and its publication date has passed. Viewer id 0 means anonymous.
func (p *Post) VisibleTo(viewerID int, now time.Time) bool {
	if viewerID != 0 && viewerID == p.AuthorID {
		return true
	}
	return p.Published && p.CategoryPublished && !p.PubDate.After(now)
}
