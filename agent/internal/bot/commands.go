package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"call-tracker/agent/database"
	"call-tracker/agent/internal/ingest"
	"call-tracker/agent/internal/models"
	"call-tracker/shared/logger"
	"call-tracker/shared/notifications"

	"github.com/mymmrac/telego"
)

// CommandHandler processes the admin roster commands. Non-admins get no
// reply at all so the bot stays quiet in busy groups.
type CommandHandler struct {
	bot    *telego.Bot
	users  *database.UserStore
	auth   *ingest.Authorizer
	admins map[int64]bool
}

func NewCommandHandler(bot *telego.Bot, users *database.UserStore, auth *ingest.Authorizer, adminIDs []int64) *CommandHandler {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &CommandHandler{bot: bot, users: users, auth: auth, admins: admins}
}

// HandleCommand dispatches a slash command. Returns true when the message
// was one of ours, whether or not it succeeded.
func (h *CommandHandler) HandleCommand(msg *telego.Message) bool {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return false
	}

	command := strings.ToLower(strings.TrimLeft(fields[0], "/"))
	if at := strings.Index(command, "@"); at != -1 {
		command = command[:at]
	}
	args := fields[1:]

	switch command {
	case "addcaller", "addshotcaller", "removeuser", "listusers", "help":
	default:
		return false
	}

	if msg.From == nil || !h.admins[msg.From.ID] {
		logger.Log.Warnf("Ignoring admin command %q from non-admin user %d.", command, userID(msg))
		return true
	}

	switch command {
	case "addcaller":
		h.addUser(msg, args, models.RoleCaller)
	case "addshotcaller":
		h.addUser(msg, args, models.RoleShotCaller)
	case "removeuser":
		h.removeUser(msg, args)
	case "listusers":
		h.listUsers(msg)
	case "help":
		h.sendHelp(msg)
	}
	return true
}

func userID(msg *telego.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}

// targetUser resolves the command target: an explicit @handle argument, or
// the author of the replied-to message.
func targetUser(msg *telego.Message, args []string) (username string, id int64, ok bool) {
	if len(args) > 0 && strings.HasPrefix(args[0], "@") {
		return strings.TrimPrefix(args[0], "@"), 0, true
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		from := msg.ReplyToMessage.From
		return from.Username, from.ID, from.Username != ""
	}
	return "", 0, false
}

func (h *CommandHandler) addUser(msg *telego.Message, args []string, role string) {
	username, id, ok := targetUser(msg, args)
	if !ok {
		h.reply(msg, "Usage: reply to the user's message, or pass their @username\\.")
		return
	}
	if err := h.users.UpsertUser(username, role, id, userID(msg)); err != nil {
		h.reply(msg, "Failed to store the user, check logs\\.")
		return
	}
	h.reloadRoster()

	label := "caller"
	if role == models.RoleShotCaller {
		label = "shot caller"
	}
	h.reply(msg, fmt.Sprintf("Added @%s as %s\\.", notifications.EscapeMarkdownV2(username), label))
}

func (h *CommandHandler) removeUser(msg *telego.Message, args []string) {
	username, _, ok := targetUser(msg, args)
	if !ok {
		h.reply(msg, "Usage: reply to the user's message, or pass their @username\\.")
		return
	}
	removed, err := h.users.DeleteUser(username)
	if err != nil {
		h.reply(msg, "Failed to remove the user, check logs\\.")
		return
	}
	if removed == 0 {
		h.reply(msg, fmt.Sprintf("@%s was not on the roster\\.", notifications.EscapeMarkdownV2(username)))
		return
	}
	h.reloadRoster()
	h.reply(msg, fmt.Sprintf("Removed @%s\\.", notifications.EscapeMarkdownV2(username)))
}

func (h *CommandHandler) listUsers(msg *telego.Message) {
	users, err := h.users.ListUsers()
	if err != nil {
		h.reply(msg, "Failed to list users, check logs\\.")
		return
	}
	if len(users) == 0 {
		h.reply(msg, "The roster is empty\\.")
		return
	}

	var shotCallers, callers []string
	for _, u := range users {
		entry := "@" + notifications.EscapeMarkdownV2(u.Username)
		if u.Role == models.RoleShotCaller {
			shotCallers = append(shotCallers, entry)
		} else {
			callers = append(callers, entry)
		}
	}

	var b strings.Builder
	b.WriteString("*Caller roster*\n")
	if len(shotCallers) > 0 {
		fmt.Fprintf(&b, "\n🧠 Shot callers \\(%d\\):\n%s\n", len(shotCallers), strings.Join(shotCallers, "\n"))
	}
	if len(callers) > 0 {
		fmt.Fprintf(&b, "\n🔔 Callers \\(%d\\):\n%s\n", len(callers), strings.Join(callers, "\n"))
	}
	h.reply(msg, b.String())
}

func (h *CommandHandler) sendHelp(msg *telego.Message) {
	help := "*Admin commands*\n\n" +
		"`/addcaller @user` \\- authorize a caller\n" +
		"`/addshotcaller @user` \\- authorize a shot caller\n" +
		"`/removeuser @user` \\- remove from the roster\n" +
		"`/listusers` \\- show the roster\n\n" +
		"All commands also work as a reply to the target user's message\\."
	h.reply(msg, help)
}

// reloadRoster applies roster edits immediately instead of waiting for the
// next scheduled reload.
func (h *CommandHandler) reloadRoster() {
	if h.auth != nil {
		_ = h.auth.Reload()
	}
}

func (h *CommandHandler) reply(msg *telego.Message, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := h.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: msg.Chat.ID},
		Text:      text,
		ParseMode: telego.ModeMarkdownV2,
		ReplyParameters: &telego.ReplyParameters{
			MessageID: msg.MessageID,
		},
	})
	if err != nil {
		logger.Log.Errorf("Command reply failed in chat %d: %v", msg.Chat.ID, err)
	}
}
