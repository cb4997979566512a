package testutil

import "testing"

// ScenarioRunner is handed to a Scenario body so it can register the
// behaviors its fixture must exhibit, each as a subtest.
type ScenarioRunner struct {
	*testing.T
}

// Scenario runs fn inside a named subtest. The fixture built in fn's scope is
// shared by every Expect call, which keeps wiring tests readable without a
// BDD framework.
func Scenario(t *testing.T, desc string, fn func(s *ScenarioRunner)) {
	t.Helper()
	t.Run(desc, func(t *testing.T) {
		fn(&ScenarioRunner{T: t})
	})
}

// Expect records one behavior of the scenario's fixture.
func (s *ScenarioRunner) Expect(behavior string, fn func(t *testing.T)) {
	s.Helper()
	s.Run("expect "+behavior, fn)
}
