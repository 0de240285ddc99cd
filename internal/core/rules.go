package core

import "landledger/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds an engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ProjectScopeRule())
	engine.Register(LineageIntegrityRule())
	engine.Register(LedgerImmutabilityRule())
	engine.Register(SurveyOverlapRule())
	return engine
}
