package feed

import (
	"github.com/openrss/reader/app/database"
	"github.com/openrss/reader/app/session"
)

// AnnotatedArticle is an article decorated with its session read state for
// rendering. SessionRead drives the reduced-emphasis styling; it is set
// from the tracker's read sets, independent of the stored read flag.
type AnnotatedArticle struct {
	database.Article
	SessionRead bool
}

type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Run applies the rendering contract to a fetched list: in unread mode an
// article stays visible when it is unread on the server OR was read during
// this session, so articles never vanish from the list mid-session just
// because the user read them.
func (a *Annotator) Run(articles []database.Article, mode session.FilterMode, sessionRead map[string]struct{}) []AnnotatedArticle {
	annotated := make([]AnnotatedArticle, 0, len(articles))

	for _, article := range articles {
		_, inSession := sessionRead[article.ID]

		if mode == session.FilterModeUnread && article.IsRead && !inSession {
			continue
		}

		annotated = append(annotated, AnnotatedArticle{
			Article:     article,
			SessionRead: inSession,
		})
	}

	return annotated
}
