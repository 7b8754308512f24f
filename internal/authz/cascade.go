package authz

import "strings"

// candidateCodes expands a requested permission into the ordered list of
// concrete codes to look up against the held set.
//
// The admissible scopes are the narrowest applicable one and everything
// broader; when the requested code pins a scope, the floor is the wider
// of the two. The list is generated narrow-first and then reversed, so
// checking walks from the most general admissible scope down to the most
// specific: a broader grant always satisfies a narrower need.
//
// Within each scope, data levels run from the requested level up to the
// maximum; a data-level-qualified grant wins over an unqualified one only
// because it is tried first. Two scope-free fallbacks close the list:
// resource.action.dataLevel, then the bare resource.action.
func candidateCodes(code Code, narrowest Scope) []string {
	floor := narrowest
	if code.Scope != "" && code.Scope.Rank() > floor.Rank() {
		floor = code.Scope
	}

	var scopes []Scope
	for _, scope := range Scopes() {
		if scope.Rank() >= floor.Rank() {
			scopes = append(scopes, scope)
		}
	}
	for i, j := 0, len(scopes)-1; i < j; i, j = i+1, j-1 {
		scopes[i], scopes[j] = scopes[j], scopes[i]
	}

	base := code.Resource + "." + code.Action
	candidates := make([]string, 0, len(scopes)*3+2)
	for _, scope := range scopes {
		if code.DataLevel != "" {
			for _, level := range DataLevels() {
				if level.Rank() >= code.DataLevel.Rank() {
					candidates = append(candidates, base+"."+string(level)+"."+string(scope))
				}
			}
		} else {
			candidates = append(candidates, base+"."+string(scope))
		}
	}
	if code.DataLevel != "" {
		candidates = append(candidates, base+"."+string(code.DataLevel))
	}
	candidates = append(candidates, base)
	return candidates
}

// matchesGrant reports whether the candidate code is satisfied by the
// held set, either verbatim or through a wildcard grant that replaces
// exactly the final dot segment. Wildcards never swallow more than one
// trailing segment.
func matchesGrant(held map[string]struct{}, candidate string) bool {
	if _, ok := held[candidate]; ok {
		return true
	}
	idx := strings.LastIndexByte(candidate, '.')
	if idx < 0 {
		return false
	}
	_, ok := held[candidate[:idx+1]+"*"]
	return ok
}

// evaluate answers a single permission question against a snapshot. The
// result is a pure function of the requested code, the subject's org
// context, and the target; evaluation order between calls never matters.
func (s *Snapshot) evaluate(code Code, target *Target) bool {
	narrowest := NarrowestScope(s.Org, target)
	for _, candidate := range candidateCodes(code, narrowest) {
		if matchesGrant(s.Permissions, candidate) {
			return true
		}
	}
	return false
}

// effectiveScope returns the widest scope at which the subject may
// perform resource.action on the target, walking wide to narrow.
func (s *Snapshot) effectiveScope(resource, action string, target *Target) (Scope, bool) {
	scopes := Scopes()
	for i := len(scopes) - 1; i >= 0; i-- {
		code := Code{Resource: resource, Action: action, Scope: scopes[i]}
		if s.evaluate(code, target) {
			return scopes[i], true
		}
	}
	return "", false
}

// maxDataLevel returns the highest data level the subject may touch for
// resource.action on the target, walking high to low.
func (s *Snapshot) maxDataLevel(resource, action string, target *Target) (DataLevel, bool) {
	levels := DataLevels()
	for i := len(levels) - 1; i >= 0; i-- {
		code := Code{Resource: resource, Action: action, DataLevel: levels[i]}
		if s.evaluate(code, target) {
			return levels[i], true
		}
	}
	return "", false
}
