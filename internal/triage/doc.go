// Package triage classifies vitals readings into triage classes. It defines
// the RuleSet loaded from the rule file, the Engine (ordered, pure threshold
// rules), and the Service that ties a vitals source to the engine and fans
// out notifications.
package triage
