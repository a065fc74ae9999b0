// Package intent classifies user utterances into coarse jewelry domains and
// routes each domain to its vector collection. Both operations are pure
// lookups over static tables: classification never fails and unmatched input
// falls back to the general domain.
package intent

import (
	"strings"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
)

// domainKeywords holds per-domain trigger keywords with their weights.
// Iteration follows domain.KnownDomains so tie-breaks are deterministic:
// the first-declared domain wins a tied score.
var domainKeywords = map[domain.Domain][]weightedKeyword{
	domain.DomainProducts: {
		{"diamond", 3}, {"ring", 3}, {"engagement", 3}, {"necklace", 2},
		{"bracelet", 2}, {"earring", 2}, {"pendant", 2}, {"wedding band", 3},
		{"gemstone", 2}, {"gold", 1}, {"platinum", 1}, {"silver", 1},
		{"designer", 2}, {"collection", 1}, {"lab grown", 2}, {"lab-grown", 2},
	},
	domain.DomainServices: {
		{"repair", 3}, {"resize", 3}, {"resizing", 3}, {"appraisal", 3},
		{"cleaning", 2}, {"appointment", 2}, {"custom design", 3},
		{"engraving", 2}, {"restring", 2}, {"polish", 1}, {"warranty", 2},
		{"insurance", 2}, {"watch battery", 2},
	},
	domain.DomainEducation: {
		{"4cs", 3}, {"4 cs", 3}, {"clarity", 2}, {"carat", 2}, {"cut", 1},
		{"color grade", 2}, {"certification", 2}, {"gia", 3}, {"what is", 1},
		{"difference between", 2}, {"how to choose", 2}, {"moissanite", 2},
		{"ethical", 1}, {"conflict free", 2},
	},
	domain.DomainCommercial: {
		{"price", 3}, {"cost", 3}, {"financing", 3}, {"payment", 2},
		{"budget", 2}, {"sale", 2}, {"discount", 2}, {"trade in", 2},
		{"trade-in", 2}, {"layaway", 3}, {"how much", 3}, {"deal", 1},
	},
}

type weightedKeyword struct {
	phrase string
	weight int
}

// Classify maps free-text user input to a domain label using weighted keyword
// scoring. The strictly highest total wins; a zero score everywhere yields
// DomainGeneral. Pure function over static configuration.
func Classify(userInput string) domain.Domain {
	input := strings.ToLower(userInput)

	best := domain.DomainGeneral
	bestScore := 0
	for _, d := range domain.KnownDomains {
		score := 0
		for _, kw := range domainKeywords[d] {
			if strings.Contains(input, kw.phrase) {
				score += kw.weight
			}
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}
