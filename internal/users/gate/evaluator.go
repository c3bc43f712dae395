// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"fmt"
	"path"
	"strings"

	"github.com/taibuivan/profilegate/internal/platform/constants"
	"github.com/taibuivan/profilegate/internal/platform/sec"
	"github.com/taibuivan/profilegate/pkg/query"
)

// # Authentication Status

// AuthStatus is what the session layer knows about the caller.
type AuthStatus int

const (
	// AuthUnknown means the session lookup has not finished.
	AuthUnknown AuthStatus = iota
	// AuthAnonymous means the lookup finished without a session.
	AuthAnonymous
	// AuthAuthenticated means a valid session was found.
	AuthAuthenticated
)

func (status AuthStatus) String() string {
	switch status {
	case AuthAnonymous:
		return "anonymous"
	case AuthAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// # States & Decisions

// State is the evaluator state that produced a decision.
type State string

const (
	StateCheckingAuth       State = "checking_auth"
	StateUnauthenticated    State = "unauthenticated"
	StateCheckingAttributes State = "checking_attributes"
	StateBanned             State = "banned"
	StateInsufficientRole   State = "insufficient_role"
	StateIncompleteProfile  State = "incomplete_profile"
	StateAuthorized         State = "authorized"
)

// Kind tags a [Decision].
type Kind string

const (
	KindAllow    Kind = "allow"
	KindRedirect Kind = "redirect"
	KindPending  Kind = "pending"
)

// Decision is produced fresh for every navigation and never stored.
type Decision struct {
	Kind   Kind   `json:"decision"`
	Target string `json:"target,omitempty"`

	// From is the originating path, set on redirects to the login screen.
	From  string `json:"from,omitempty"`
	State State  `json:"state"`
}

func allow(state State) Decision {
	return Decision{Kind: KindAllow, State: state}
}

func pending(state State) Decision {
	return Decision{Kind: KindPending, State: state}
}

// # Requirements

// Requirements is the set of checks a route declares.
type Requirements struct {
	RequireAuth        bool         `json:"require_auth"`
	RequireRole        sec.UserRole `json:"require_role,omitempty"`
	RequireBanCheck    bool         `json:"require_ban_check"`
	RequireCountry     bool         `json:"require_country"`
	RequireDateOfBirth bool         `json:"require_date_of_birth"`
}

// NeedsAttributes reports whether any requested check reads account attributes.
func (requirements Requirements) NeedsAttributes() bool {
	return requirements.RequireBanCheck ||
		requirements.RequireRole != "" ||
		requirements.RequireCountry ||
		requirements.RequireDateOfBirth
}

// Empty reports whether no check is requested at all.
func (requirements Requirements) Empty() bool {
	return !requirements.RequireAuth && !requirements.NeedsAttributes()
}

/*
ParseRequirements builds requirements from a comma separated list of checks
(auth, ban, country, dob) and an optional role.

Returns:
  - Requirements: parsed set
  - error: on an unknown check or role
*/
func ParseRequirements(checks string, role string) (Requirements, error) {
	var requirements Requirements

	for _, check := range query.StringSlice(checks) {
		switch strings.ToLower(check) {
		case "auth":
			requirements.RequireAuth = true
		case "ban":
			requirements.RequireBanCheck = true
		case "country":
			requirements.RequireCountry = true
		case "dob", "date_of_birth":
			requirements.RequireDateOfBirth = true
		default:
			return Requirements{}, fmt.Errorf("unknown gate check %q", check)
		}
	}

	if role = strings.TrimSpace(strings.ToLower(role)); role != "" {
		requirements.RequireRole = sec.UserRole(role)
		if !requirements.RequireRole.Valid() {
			return Requirements{}, fmt.Errorf("unknown role %q", role)
		}
	}

	return requirements, nil
}

// # Evaluation

// Input is everything a single evaluation depends on.
type Input struct {
	Auth AuthStatus

	// Attributes is nil while the snapshot has not been resolved.
	Attributes   *Attributes
	Requirements Requirements
	Path         string
}

/*
Evaluate runs the gate state machine. It is a pure function of its input.

Checks run in a fixed order: ban, then role, then completeness. A redirect
whose target is the current path becomes Allow so the destination screens
never loop onto themselves.
*/
func Evaluate(input Input) Decision {
	requirements := input.Requirements
	current := NormalizePath(input.Path)

	switch input.Auth {
	case AuthUnknown:
		return pending(StateCheckingAuth)
	case AuthAnonymous:
		if !requirements.RequireAuth {
			return allow(StateUnauthenticated)
		}
		decision := redirect(StateUnauthenticated, constants.RouteAuth, current)
		if decision.Kind == KindRedirect {
			decision.From = current
		}
		return decision
	}

	if !requirements.NeedsAttributes() {
		return allow(StateAuthorized)
	}
	if input.Attributes == nil {
		return pending(StateCheckingAttributes)
	}

	attributes := input.Attributes
	if requirements.RequireBanCheck && attributes.IsBanned {
		return redirect(StateBanned, constants.RouteBanned, current)
	}
	if requirements.RequireRole != "" && !attributes.Role.AtLeast(requirements.RequireRole) {
		return redirect(StateInsufficientRole, constants.RouteHome, current)
	}
	if (requirements.RequireCountry && !attributes.HasCountry) ||
		(requirements.RequireDateOfBirth && !attributes.HasDateOfBirth) {
		return redirect(StateIncompleteProfile, constants.RouteCompleteProfile, current)
	}

	return allow(StateAuthorized)
}

func redirect(state State, target string, current string) Decision {
	if target == current {
		return allow(state)
	}
	return Decision{Kind: KindRedirect, Target: target, State: state}
}

// NormalizePath strips query and fragment and cleans the remaining path.
func NormalizePath(raw string) string {
	if index := strings.IndexAny(raw, "?#"); index >= 0 {
		raw = raw[:index]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return path.Clean(raw)
}
