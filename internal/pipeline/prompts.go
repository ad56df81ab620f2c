package pipeline

import (
	"fmt"

	"github.com/realaashishly/Social-Bot/internal/ai"
)

// User-facing replies. Raw errors never reach the chat; every failure maps
// to one of these.
const (
	ReplyUserNotFound       = "User not found. Please restart the bot with /start."
	ReplyRegisterBeforeLink = "Please restart the bot with /start then paste the link again."
	ReplyRegisterBeforeNote = "Please start the bot first"
	ReplyNoEvents           = "No events for the day."
	ReplyDifficulties       = "Facing some difficulties!"
	ReplyRegistrationFailed = "Facing some issues! Please try again"
	ReplyNoSubtitles        = "No Subtitles found"
	ReplyInvalidLink        = "Invalid Video Link"
	ReplySummaryFailed      = "Unable to Summarize the video"
	ReplyNoteSaved          = "Noted 👍, Keep texting me your thoughts. To generate the posts, just enter the command: /generate"
	ReplyNotesNotSupported  = "We're currently working on our text messaging service. Apologies for any inconvenience."
	welcomeFormat           = "Hey %s, Welcome. I will be writing highly engaging social media posts for you 🚀 Just keep feeding me with the events throughout the day. Let's shine on social media ✨"
	waitingFormat           = "Hey! %s, kindly wait for a moment. I am curating a post for you 🚀⌛"
)

// Telegram sticker file ids.
const (
	StickerDigestLoading  = "CAACAgIAAxkBAAMSZlta8V27fLEHdVkZwWzUaO2WHA4AAkoDAAK1cdoGwn4G-ptIHsQ1BA"
	StickerSummaryLoading = "CAACAgIAAxkBAAPBZmvkquSdnsOtpA1sH1QaN_idVa4AAiMAAygPahQnUSXnjCCkBjUE"
	StickerNotesDisabled  = "CAACAgIAAxkBAAIBXWZsWd27ZG4GEu6IvwABFHDUQDDzmQACIgEAAjDUnRFFom0FAXPdVjUE"
)

func WelcomeText(firstName string) string { return fmt.Sprintf(welcomeFormat, firstName) }
func WaitingText(firstName string) string { return fmt.Sprintf(waitingFormat, firstName) }

const (
	digestSystemPrompt = "Act as a senior copywriter, you write highly engaging posts for LinkedIn, Facebook, and Twitter using provided thoughts/events throughout the day."

	digestUserPrompt = "Write like a human, for humans. Craft three engaging social media posts tailored for LinkedIn, Facebook, and Twitter audiences. " +
		"Use simple language. Use given time labels just to understand the order of the event, don't mention the time in the posts. " +
		"Each post should creatively highlight the following events. Ensure the tone is conversational and impactful. " +
		"Focus on engaging the respective platform's audience, encouraging interaction, and driving interest in the events: %s"

	summarySystemPrompt = "You have to summarize a YouTube video using its transcript in 10 points"
)

// DigestPrompt asks for three platform-specific posts about subject.
func DigestPrompt(subject string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: digestSystemPrompt},
		{Role: ai.RoleUser, Content: fmt.Sprintf(digestUserPrompt, subject)},
	}
}

// SummaryPrompt asks for a 10 point summary of a transcript.
func SummaryPrompt(transcript string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: summarySystemPrompt},
		{Role: ai.RoleUser, Content: transcript},
	}
}
