package relay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/gm-relay/internal/domain"
	"github.com/spec-kit/gm-relay/internal/payload"
	"github.com/spec-kit/gm-relay/internal/platform"
)

// MessageLimit is the platform's effective message size; anything longer
// is cut with a trailing ellipsis.
const MessageLimit = 1900

// Embed palette per event kind.
const (
	colorTicketCreate  = 0x2D9CDB
	colorTicketUpdate  = 0xF2C94C
	colorTicketClose   = 0xFF5555
	colorGMWhisper     = 0x6FCF97
	colorPlayerWhisper = 0x9B51E0
	colorCommandOK     = 0x6FCF97
	colorCommandError  = 0xEB5757
)

// TruncateMessage cuts content to the platform limit, appending "..."
// when anything was dropped.
func TruncateMessage(content string) string {
	if len(content) <= MessageLimit {
		return content
	}
	return content[:MessageLimit] + "..."
}

// EmbedForEvent renders an outbox event as an embed. The second return
// is false for payloads that cannot be rendered; callers fall back to a
// plain-text form.
func EmbedForEvent(event domain.OutboxEventType, body string) (*platform.Embed, bool) {
	switch {
	case event.IsTicketEvent():
		return buildTicketEmbed(event, body)
	case event.IsWhisperEvent():
		return buildWhisperEmbed(event, body)
	case event == domain.EventCommandResult:
		return buildCommandResultEmbed(body)
	}
	return nil, false
}

func buildTicketEmbed(event domain.OutboxEventType, body string) (*platform.Embed, bool) {
	block, ok := payload.ExtractBlock(body, "ticket")
	if !ok {
		return nil, false
	}
	id, ok := payload.ExtractUint(block, "id")
	if !ok {
		return nil, false
	}

	var title string
	var color uint32
	switch event {
	case domain.EventTicketCreate:
		title = fmt.Sprintf("Ticket #%d opened", id)
		color = colorTicketCreate
	case domain.EventTicketUpdate:
		title = fmt.Sprintf("Ticket #%d updated", id)
		color = colorTicketUpdate
	case domain.EventTicketStatus:
		title = fmt.Sprintf("Ticket #%d status changed", id)
		color = colorTicketUpdate
	case domain.EventTicketClose:
		title = fmt.Sprintf("Ticket #%d closed", id)
		color = colorTicketClose
	case domain.EventTicketResolve:
		title = fmt.Sprintf("Ticket #%d resolved", id)
		color = colorTicketClose
	default:
		return nil, false
	}

	embed := &platform.Embed{
		Title:       title,
		Description: TruncateMessage(payload.StringOr(block, "message", "")),
		Color:       color,
		Fields: []platform.EmbedField{
			{Name: "Player", Value: payload.StringOr(block, "player", "unknown"), Inline: true},
			{Name: "Assigned", Value: payload.StringOr(block, "assignedTo", "unassigned"), Inline: true},
		},
	}
	if status := payload.StringOr(block, "status", ""); status != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Status", Value: status, Inline: true})
	}
	if comment := payload.StringOr(block, "comment", ""); comment != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Comment", Value: TruncateMessage(comment)})
	}
	if response := payload.StringOr(block, "response", ""); response != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Response", Value: TruncateMessage(response)})
	}
	return embed, true
}

func buildWhisperEmbed(event domain.OutboxEventType, body string) (*platform.Embed, bool) {
	block, ok := payload.ExtractBlock(body, "whisper")
	if !ok {
		return nil, false
	}
	player := payload.StringOr(block, "player", "unknown")
	gm := payload.StringOr(block, "gmName", "unknown")
	message := TruncateMessage(payload.StringOr(block, "message", ""))

	if event == domain.EventGMWhisper {
		return &platform.Embed{
			Title:       fmt.Sprintf("%s -> %s", gm, player),
			Description: message,
			Color:       colorGMWhisper,
		}, true
	}
	return &platform.Embed{
		Title:       fmt.Sprintf("%s -> %s", player, gm),
		Description: message,
		Color:       colorPlayerWhisper,
	}, true
}

func buildCommandResultEmbed(body string) (*platform.Embed, bool) {
	block, ok := payload.ExtractBlock(body, "result")
	if !ok {
		return nil, false
	}
	command := payload.StringOr(block, "command", "")
	status := payload.StringOr(block, "status", domain.StatusError)
	output := payload.StringOr(block, "output", "")

	color := uint32(colorCommandError)
	title := "Command failed"
	if status == domain.StatusOK {
		color = colorCommandOK
		title = "Command executed"
	}
	embed := &platform.Embed{
		Title:       title,
		Description: TruncateMessage(output),
		Color:       color,
	}
	if command != "" {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Command", Value: TruncateMessage(command)})
	}
	return embed, true
}

// FallbackContent renders an event the embed builders rejected.
func FallbackContent(event domain.OutboxEventType, body string) string {
	return TruncateMessage(fmt.Sprintf("[%s] %s", event, body))
}

// TicketIDFromEvent pulls the ticket id out of a ticket event body.
func TicketIDFromEvent(body string) (uint32, bool) {
	block, ok := payload.ExtractBlock(body, "ticket")
	if !ok {
		return 0, false
	}
	return payload.ExtractUint(block, "id")
}

// FormatRoomName expands {id} and {player} in the room name template and
// sanitizes the result to lowercase alphanumerics, '-' and '_'.
func FormatRoomName(format string, ticketID uint32, player string) string {
	name := strings.ReplaceAll(format, "{id}", strconv.FormatUint(uint64(ticketID), 10))
	name = strings.ReplaceAll(name, "{player}", player)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ', r == '\t':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// ParseTicketIDFromThreadName recovers a ticket id from the
// "ticket-<id>-..." thread naming convention.
func ParseTicketIDFromThreadName(name string) (uint32, bool) {
	const prefix = "ticket-"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.ParseUint(rest[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}
