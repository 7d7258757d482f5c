package domain

import "strings"

// PrivilegeLevel mirrors the game server's account security tiers.
type PrivilegeLevel uint32

const (
	PrivilegePlayer        PrivilegeLevel = 0
	PrivilegeModerator     PrivilegeLevel = 1
	PrivilegeGameMaster    PrivilegeLevel = 2
	PrivilegeAdministrator PrivilegeLevel = 3
)

// ParsePrivilege maps a config token to a privilege level. Accepts the
// tier name or its numeric value; unknown input falls back to the given
// default.
func ParsePrivilege(value string, fallback PrivilegeLevel) PrivilegeLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "player", "0":
		return PrivilegePlayer
	case "moderator", "1":
		return PrivilegeModerator
	case "gamemaster", "gm", "2":
		return PrivilegeGameMaster
	case "administrator", "admin", "3":
		return PrivilegeAdministrator
	}
	return fallback
}

func (p PrivilegeLevel) String() string {
	switch p {
	case PrivilegePlayer:
		return "player"
	case PrivilegeModerator:
		return "moderator"
	case PrivilegeGameMaster:
		return "gamemaster"
	case PrivilegeAdministrator:
		return "administrator"
	}
	return "unknown"
}
