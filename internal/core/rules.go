package core

import "liderforte/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine enforcing the workflow invariants.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(
		ProcessTransitionRule(),
		SingleNewLeaderRule(),
		ActiveMembershipRule(),
		SingleActiveProcessRule(),
	)
	return engine
}
