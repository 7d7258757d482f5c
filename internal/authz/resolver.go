// Package authz decides whether a platform actor may proxy a given
// command into the game server. Two independent gates apply: a literal
// prefix allow-list bounding the shape of what can ever be proxied, and
// a per-category privilege floor bounding who may invoke it.
package authz

import (
	"strings"

	"github.com/spec-kit/gm-relay/internal/domain"
)

// Category names form a fixed closed set; anything unmatched is misc.
const (
	CategoryTicket    = "ticket"
	CategoryTele      = "tele"
	CategoryGM        = "gm"
	CategoryBan       = "ban"
	CategoryAccount   = "account"
	CategoryCharacter = "character"
	CategoryLookup    = "lookup"
	CategoryServer    = "server"
	CategoryDebug     = "debug"
	CategoryWhisper   = "whisper"
	CategoryMisc      = "misc"
)

// Categories lists every known category.
var Categories = []string{
	CategoryTicket, CategoryTele, CategoryGM, CategoryBan, CategoryAccount,
	CategoryCharacter, CategoryLookup, CategoryServer, CategoryDebug,
	CategoryWhisper, CategoryMisc,
}

// Resolver maps commands to categories and enforces the allow-list and
// privilege floors.
type Resolver struct {
	globalMin   domain.PrivilegeLevel
	categoryMin map[string]domain.PrivilegeLevel
	allowList   []string
	allowAll    bool
}

// Config carries the resolver's tuning knobs.
type Config struct {
	GlobalMin   domain.PrivilegeLevel
	CategoryMin map[string]domain.PrivilegeLevel
	AllowList   []string
	AllowAll    bool
}

// NewResolver builds a resolver; allow-list entries are normalized to
// lowercase.
func NewResolver(cfg Config) *Resolver {
	allowList := make([]string, 0, len(cfg.AllowList))
	for _, prefix := range cfg.AllowList {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" {
			allowList = append(allowList, prefix)
		}
	}
	categoryMin := make(map[string]domain.PrivilegeLevel, len(cfg.CategoryMin))
	for name, level := range cfg.CategoryMin {
		categoryMin[strings.ToLower(name)] = level
	}
	return &Resolver{
		globalMin:   cfg.GlobalMin,
		categoryMin: categoryMin,
		allowList:   allowList,
		allowAll:    cfg.AllowAll,
	}
}

// Root normalizes a raw command to its first token: strip one leading
// prefix character, lowercase, cut at the first space.
func Root(command string) string {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '.' || trimmed[0] == '!' {
		trimmed = trimmed[1:]
	}
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return ""
	}
	root, _, _ := strings.Cut(trimmed, " ")
	return strings.ToLower(root)
}

// Category maps a command root to its category via exact/alias matching.
func Category(root string) string {
	switch strings.ToLower(root) {
	case "ticket", "tickets":
		return CategoryTicket
	case "tele", "teleport", "go":
		return CategoryTele
	case "gm", "gminfo", "gmname":
		return CategoryGM
	case "ban", "unban":
		return CategoryBan
	case "account", "acc":
		return CategoryAccount
	case "character", "char":
		return CategoryCharacter
	case "lookup", "who", "name":
		return CategoryLookup
	case "server", "shutdown", "restart":
		return CategoryServer
	case "debug":
		return CategoryDebug
	}
	return CategoryMisc
}

// Allowed reports whether the command matches the prefix allow-list
// (or the allow-all switch is set).
func (r *Resolver) Allowed(command string) bool {
	if r.allowAll {
		return true
	}
	trimmed := strings.ToLower(strings.TrimSpace(command))
	if trimmed == "" {
		return false
	}
	for _, prefix := range r.allowList {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// Required returns the privilege floor for a category: the category
// override when present, raised to at least the global minimum.
func (r *Resolver) Required(category string) domain.PrivilegeLevel {
	required := r.globalMin
	if min, ok := r.categoryMin[strings.ToLower(category)]; ok && min > required {
		required = min
	}
	return required
}

// Check applies both gates to a raw command. It returns the resolved
// category, a human-readable denial reason, and whether the command may
// proceed. Both the allow-list and the privilege floor must pass.
func (r *Resolver) Check(command string, privilege domain.PrivilegeLevel) (category, reason string, ok bool) {
	if !r.Allowed(command) {
		return "", "command not allowed by the command allow-list", false
	}

	category = Category(Root(command))
	if privilege < r.Required(category) {
		return category, "account privilege too low for category '" + category + "'", false
	}
	return category, "", true
}
