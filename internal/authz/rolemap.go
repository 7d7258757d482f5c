package authz

import "strings"

// RoleMap grants command categories to platform roles. An empty map
// grants everything: role gating is opt-in.
type RoleMap map[string]map[string]struct{}

// ParseRoleMap reads a `roleId:cat,cat;roleId:cat` mapping string.
// Malformed entries are skipped.
func ParseRoleMap(raw string) RoleMap {
	out := make(RoleMap)
	for _, entry := range strings.Split(raw, ";") {
		roleID, categories, found := strings.Cut(entry, ":")
		if !found {
			continue
		}
		roleID = strings.TrimSpace(roleID)
		if roleID == "" {
			continue
		}
		set := out[roleID]
		for _, category := range strings.Split(categories, ",") {
			category = strings.ToLower(strings.TrimSpace(category))
			if category == "" {
				continue
			}
			if set == nil {
				set = make(map[string]struct{})
				out[roleID] = set
			}
			set[category] = struct{}{}
		}
	}
	return out
}

// Allows reports whether any of the actor's roles grants the category.
func (m RoleMap) Allows(roleIDs []string, category string) bool {
	if len(m) == 0 {
		return true
	}
	category = strings.ToLower(category)
	for _, roleID := range roleIDs {
		if set, ok := m[roleID]; ok {
			if _, granted := set[category]; granted {
				return true
			}
		}
	}
	return false
}

// RoleIDs returns every role that appears in the mapping.
func (m RoleMap) RoleIDs() []string {
	out := make([]string, 0, len(m))
	for roleID := range m {
		out = append(out, roleID)
	}
	return out
}
