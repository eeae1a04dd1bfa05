package policy

import (
	"context"
	"fmt"
	"strings"
)

// evalRules runs the declarative strategy: the rules list is OR'd, the
// fields inside a rule are AND'd, and evaluation short-circuits left to
// right since permission checks and entity loads are I/O-bound.
func (e *Engine) evalRules(ctx context.Context, pc *Context, rules []AccessRule) (*Result, error) {
	for _, rule := range rules {
		ok, err := e.evalRule(ctx, pc, rule)
		if err != nil {
			return nil, err
		}
		if ok {
			return Grant("Meets requirement: " + describeRule(rule)), nil
		}
	}
	return Deny("Does not meet the access requirements for " + pc.policyID), nil
}

func (e *Engine) evalRule(ctx context.Context, pc *Context, rule AccessRule) (bool, error) {
	if len(rule.Any) > 0 {
		for _, member := range rule.Any {
			ok, err := e.evalRule(ctx, pc, member)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	if len(rule.All) > 0 {
		for _, member := range rule.All {
			ok, err := e.evalRule(ctx, pc, member)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}

	if rule.Authenticated && !pc.Authenticated() {
		return false, nil
	}
	if rule.Permission != "" {
		ok, err := pc.HasPermission(ctx, rule.Permission)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(rule.AnyPermission) > 0 {
		ok, err := pc.HasAnyPermission(ctx, rule.AnyPermission...)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(rule.AllPermissions) > 0 {
		ok, err := pc.HasAllPermissions(ctx, rule.AllPermissions...)
		if err != nil || !ok {
			return false, err
		}
	}
	if rule.Component != "" {
		ok, err := pc.ComponentEnabled(ctx, rule.Component)
		if err != nil || !ok {
			return false, err
		}
	}
	if rule.Linkage != "" {
		ok, err := resolveLinkage(ctx, pc, rule.Linkage)
		if err != nil || !ok {
			return false, err
		}
	}
	if rule.Policy != "" {
		ok, err := pc.CheckPolicy(ctx, rule.Policy, pc.EntityID)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(rule.Attributes) > 0 {
		ok, err := e.evalAttributes(ctx, pc, rule.Attributes)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// evalAttributes compares entity fields against expected values. An absent
// entity fails the condition rather than erroring: a rule about record state
// cannot hold for a record that does not exist.
func (e *Engine) evalAttributes(ctx context.Context, pc *Context, matches []AttributeMatch) (bool, error) {
	ent, err := pc.Entity(ctx)
	if err != nil {
		return false, err
	}
	if ent == nil {
		return false, nil
	}
	for _, m := range matches {
		actual, present := ent.Attr(m.Field)
		equal := present && attrEqual(actual, m.Value)
		switch m.Op {
		case AttrNeq:
			if equal {
				return false, nil
			}
		default: // AttrEq and unset default to equality
			if !equal {
				return false, nil
			}
		}
	}
	return true, nil
}

func attrEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	case int:
		switch bv := b.(type) {
		case int:
			return av == bv
		case float64:
			return float64(av) == bv
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int:
			return av == float64(bv)
		}
	}
	return false
}

// DescribeRule renders a rule as a short human-readable requirement line.
func DescribeRule(rule AccessRule) string { return describeRule(rule) }

// describeRule renders a rule as a short human-readable requirement, used
// both for granted reasons and for requirement listings.
func describeRule(rule AccessRule) string {
	if len(rule.Any) > 0 {
		parts := make([]string, 0, len(rule.Any))
		for _, member := range rule.Any {
			parts = append(parts, describeRule(member))
		}
		return "any of (" + strings.Join(parts, "; ") + ")"
	}
	if len(rule.All) > 0 {
		parts := make([]string, 0, len(rule.All))
		for _, member := range rule.All {
			parts = append(parts, describeRule(member))
		}
		return "all of (" + strings.Join(parts, "; ") + ")"
	}
	parts := make([]string, 0, 2)
	if rule.Authenticated {
		parts = append(parts, "authenticated")
	}
	if rule.Permission != "" {
		parts = append(parts, "permission "+rule.Permission)
	}
	if len(rule.AnyPermission) > 0 {
		parts = append(parts, "any permission of "+strings.Join(rule.AnyPermission, ", "))
	}
	if len(rule.AllPermissions) > 0 {
		parts = append(parts, "permissions "+strings.Join(rule.AllPermissions, ", "))
	}
	if rule.Component != "" {
		parts = append(parts, "component "+rule.Component+" enabled")
	}
	if rule.Linkage != "" {
		parts = append(parts, "linkage "+string(rule.Linkage))
	}
	if rule.Policy != "" {
		parts = append(parts, "policy "+rule.Policy)
	}
	for _, m := range rule.Attributes {
		op := "="
		if m.Op == AttrNeq {
			op = "!="
		}
		parts = append(parts, fmt.Sprintf("%s%s%v", m.Field, op, m.Value))
	}
	if len(parts) == 0 {
		return "no conditions"
	}
	return strings.Join(parts, " and ")
}
