package intent

import "github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"

// DefaultCollection is the unscoped fallback index. It holds the whole
// knowledge base and backs both unknown domains and the orchestrator's
// broader second-pass search.
const DefaultCollection = "jewelrybox_default"

// collectionByDomain maps each scoped domain to its Qdrant collection.
var collectionByDomain = map[domain.Domain]string{
	domain.DomainProducts:   "jewelrybox_products",
	domain.DomainServices:   "jewelrybox_services",
	domain.DomainEducation:  "jewelrybox_education",
	domain.DomainCommercial: "jewelrybox_commercial",
}

// RouteToCollection resolves a domain label to its collection name. Unknown
// labels, including DomainGeneral, resolve to DefaultCollection. Total
// function: no error path.
func RouteToCollection(d domain.Domain) string {
	if c, ok := collectionByDomain[d]; ok {
		return c
	}
	return DefaultCollection
}

// Collections returns every collection name, default last. Used by the
// offline index builder.
func Collections() []string {
	out := make([]string, 0, len(domain.KnownDomains)+1)
	for _, d := range domain.KnownDomains {
		out = append(out, collectionByDomain[d])
	}
	return append(out, DefaultCollection)
}
