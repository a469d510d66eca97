package facade

import "audiencelens/internal/models"

// DefaultConcepts returns the curated concept dictionary the Query
// Processor's stage 4 matches query tokens against. This is data, not
// logic (§9 open question): a deployer is expected to replace or extend it
// with a domain-specific vocabulary; tests must not assume these specific
// terms survive unchanged.
func DefaultConcepts() map[string]models.ConceptCategory {
	return map[string]models.ConceptCategory{
		"millennial":    models.ConceptDemographic,
		"millennials":   models.ConceptDemographic,
		"boomer":        models.ConceptDemographic,
		"boomers":       models.ConceptDemographic,
		"genz":          models.ConceptDemographic,
		"adult":         models.ConceptDemographic,
		"adults":        models.ConceptDemographic,
		"parent":        models.ConceptDemographic,
		"parents":       models.ConceptDemographic,
		"senior":        models.ConceptDemographic,
		"seniors":       models.ConceptDemographic,
		"income":        models.ConceptFinancial,
		"wealthy":       models.ConceptFinancial,
		"affluent":      models.ConceptFinancial,
		"disposable":    models.ConceptFinancial,
		"homeowner":     models.ConceptFinancial,
		"renter":        models.ConceptFinancial,
		"urban":         models.ConceptGeographic,
		"suburban":      models.ConceptGeographic,
		"rural":         models.ConceptGeographic,
		"metro":         models.ConceptGeographic,
		"commuter":      models.ConceptBehavioral,
		"shopper":       models.ConceptBehavioral,
		"traveler":      models.ConceptBehavioral,
		"subscriber":    models.ConceptBehavioral,
		"environmental": models.ConceptPsychographic,
		"conscious":     models.ConceptPsychographic,
		"eco":           models.ConceptPsychographic,
		"minded":        models.ConceptPsychographic,
		"luxury":        models.ConceptPsychographic,
	}
}

// DefaultSynonyms returns the static synonym map stage 5 expands up to k
// terms per surface token from.
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"rich":      {"wealthy", "affluent", "high-income", "prosperous"},
		"poor":      {"low-income", "budget-conscious"},
		"urban":     {"city", "metro", "metropolitan"},
		"rural":     {"countryside", "farmland"},
		"millennials": {"gen-y", "young-adults"},
		"eco":       {"environmental", "green", "sustainable"},
		"car":       {"automobile", "vehicle", "auto"},
		"income":    {"earnings", "salary", "wages"},
	}
}
