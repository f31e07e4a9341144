package analysis

import "strings"

// Tier is the ordinal display severity derived from a criticality string.
type Tier int

const (
	TierBasse Tier = iota
	TierMoyenne
	TierHaute
	TierCritique
)

// Tiers lists every tier from lowest to highest.
var Tiers = []Tier{TierBasse, TierMoyenne, TierHaute, TierCritique}

// TierOf maps a criticality (case-insensitive) to its tier.
// Absent or unknown values are basse.
func TierOf(c Criticality) Tier {
	switch Criticality(strings.ToLower(strings.TrimSpace(string(c)))) {
	case CriticalityCritique:
		return TierCritique
	case CriticalityHaute:
		return TierHaute
	case CriticalityMoyenne:
		return TierMoyenne
	default:
		return TierBasse
	}
}

func (t Tier) String() string {
	switch t {
	case TierCritique:
		return string(CriticalityCritique)
	case TierHaute:
		return string(CriticalityHaute)
	case TierMoyenne:
		return string(CriticalityMoyenne)
	default:
		return string(CriticalityBasse)
	}
}

// MarshalText encodes the tier by name so it can key JSON maps.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Compare returns -1, 0 or 1 following critique > haute > moyenne > basse.
func (t Tier) Compare(o Tier) int {
	switch {
	case t < o:
		return -1
	case t > o:
		return 1
	default:
		return 0
	}
}

// MaxTier returns the most severe tier among results; basse for none.
func MaxTier(results ...Result) Tier {
	top := TierBasse
	for _, r := range results {
		if t := TierOf(r.Criticality); t > top {
			top = t
		}
	}
	return top
}
