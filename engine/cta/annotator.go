package cta

import (
	"fmt"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
)

// linkSuffix is the fixed call-to-action format appended to a reply.
const linkSuffix = "\n\n🔗 You can explore that here: %s"

// AppendLink attaches one formatted call-to-action link to a reply.
func AppendLink(reply, url string) string {
	return reply + fmt.Sprintf(linkSuffix, url)
}

// Annotate appends at most one call-to-action link to reply, or returns it
// unchanged when nothing resolves. The single-link guarantee holds for any
// input: resolution short-circuits on its first hit.
func (r *Resolver) Annotate(userInput, reply string, semanticResults []domain.SearchHit) string {
	m, ok := r.Resolve(userInput, semanticResults)
	if !ok {
		return reply
	}
	return AppendLink(reply, m.URL)
}
