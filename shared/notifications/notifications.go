package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"call-tracker/shared/env"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"golang.org/x/time/rate"
)

var bot *telego.Bot
var isInitialized bool
var telegramLimiter *rate.Limiter

// InitTelegramBot verifies the bot token and prepares the global sender state.
// Safe to call more than once.
func InitTelegramBot() error {
	if isInitialized && bot != nil {
		log.Println("INFO: Telegram bot already initialized.")
		return nil
	}

	isInitialized = false
	bot = nil
	telegramLimiter = nil

	botToken := env.TelegramBotToken
	groupID := env.TelegramGroupID

	if botToken == "" {
		return fmt.Errorf("critical error: TELEGRAM_BOT_TOKEN missing from env configuration")
	}
	if groupID == 0 {
		return fmt.Errorf("critical error: TELEGRAM_GROUP_ID missing or invalid in env configuration")
	}

	log.Println("Initializing Telegram bot API...")
	var err error
	bot, err = telego.NewBot(botToken)
	if err != nil {
		bot = nil
		return fmt.Errorf("failed to initialize Telegram bot API: %w", err)
	}

	log.Println("Verifying bot token with Telegram API (GetMe)...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	userInfo, err := bot.GetMe(ctx)
	if err != nil {
		bot = nil
		return fmt.Errorf("failed to verify bot token with GetMe API call: %w", err)
	}

	isInitialized = true
	telegramLimiter = rate.NewLimiter(rate.Limit(0.2), 1)
	log.Printf("Telegram bot initialized successfully for @%s", userInfo.Username)
	log.Printf("Telegram rate limiter initialized (1 msg / 5 sec)")

	startupMessage := fmt.Sprintf("Bot connected successfully \\(@%s\\)\\. Ready\\.", EscapeMarkdownV2(userInfo.Username))
	SendSystemLogMessage(startupMessage)
	return nil
}

// GetBotInstance returns the shared bot, or nil if initialization failed.
func GetBotInstance() *telego.Bot {
	if !isInitialized || bot == nil {
		log.Println("WARN: GetBotInstance called but bot is not initialized or initialization failed.")
	}
	return bot
}

// SendTelegramMessage posts to the main group chat.
func SendTelegramMessage(message string) {
	sendMessageWithRetry(env.TelegramGroupID, 0, message)
}

// SendSystemLogMessage posts to the system-logs topic of the main group.
func SendSystemLogMessage(message string) {
	sendMessageWithRetry(env.TelegramGroupID, env.SystemLogsThreadID, message)
}

// SendCallAlertMessage posts a new-call alert to the call-alerts topic.
func SendCallAlertMessage(message string) {
	sendMessageWithRetry(env.TelegramGroupID, env.CallAlertsThreadID, message)
}

// SendShotCallerAlertMessage posts a shot-caller call to the higher-trust
// destination group, when one is configured.
func SendShotCallerAlertMessage(message string) {
	if env.ShotCallerGroupID == 0 {
		log.Println("WARN: SHOT_CALLER_GROUP_ID not configured, dropping shot caller alert.")
		return
	}
	sendMessageWithRetry(env.ShotCallerGroupID, 0, message)
}

// SendTrackingUpdateMessage posts a market-cap progress update to the
// tracking topic.
func SendTrackingUpdateMessage(message string) {
	sendMessageWithRetry(env.TelegramGroupID, env.TrackingThreadID, message)
}

func sendMessageWithRetry(chatID int64, messageThreadID int, text string) {
	if telegramLimiter == nil {
		log.Println("WARN: Telegram rate limiter not initialized! Sending text without global limit check.")
	} else if err := telegramLimiter.Wait(context.Background()); err != nil {
		log.Printf("ERROR: Telegram rate limiter wait error for chat %d: %v. Proceeding with send attempt...", chatID, err)
	}
	if bot == nil {
		log.Println("ERROR: Cannot send message, Telegram bot is not initialized.")
		return
	}
	if chatID == 0 {
		log.Println("ERROR: Cannot send message, target chatID is 0.")
		return
	}

	logCtx := fmt.Sprintf("[Text - ChatID: %d, ThreadID: %d]", chatID, messageThreadID)

	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: telego.ModeMarkdownV2,
	}
	if messageThreadID != 0 {
		params.MessageThreadID = messageThreadID
	}

	maxRetries := 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		_, err := bot.SendMessage(ctx, params)
		cancel()
		if err == nil {
			log.Printf("INFO: Text message sent successfully %s", logCtx)
			return
		}

		lastErr = err

		var apiErr *telegoapi.Error
		if errors.As(err, &apiErr) {
			log.Printf("ERROR: Failed Telegram text send (Attempt %d/%d): API Err %d - %s %s",
				i+1, maxRetries, apiErr.ErrorCode, apiErr.Description, logCtx)

			if apiErr.ErrorCode == 429 {
				retryAfter := 1
				if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
					retryAfter = apiErr.Parameters.RetryAfter
				}
				log.Printf("INFO: Telegram API rate limit hit (429). Retrying after %d seconds... %s", retryAfter, logCtx)
				time.Sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
			if apiErr.ErrorCode == 400 && strings.Contains(apiErr.Description, "message thread not found") {
				log.Printf("INFO: Thread %d not found, retrying without thread ID. %s", messageThreadID, logCtx)
				params.MessageThreadID = 0
			}
		} else {
			log.Printf("ERROR: Failed Telegram text send (Attempt %d/%d): General Error %v %s",
				i+1, maxRetries, err, logCtx)
		}

		if i < maxRetries-1 {
			waitDuration := time.Duration(math.Pow(2, float64(i))) * time.Second
			if waitDuration < time.Second {
				waitDuration = time.Second
			}
			log.Printf("INFO: Retrying failed text send in %v... %s", waitDuration, logCtx)
			time.Sleep(waitDuration)
		}
	}
	log.Printf("ERROR: Telegram text message failed to send after %d retries. Last Error: %v. %s", maxRetries, lastErr, logCtx)
}

// EscapeMarkdownV2 escapes the characters Telegram's MarkdownV2 mode reserves.
func EscapeMarkdownV2(s string) string {
	charsToEscape := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	temp := s
	for _, char := range charsToEscape {
		temp = strings.ReplaceAll(temp, char, "\\"+char)
	}
	return temp
}
