package game

import (
	"fmt"
	"strings"

	"github.com/memecoinsphinx/sphinx/internal/domain"
)

const welcomeCaption = `🔮 *Welcome, mortal, to the Realm of the MemeCoinsphinx!* 🔮

I am the guardian of crypto mysteries and keeper of meme wisdom.`

const victoryCaption = `😿 *IMPOSSIBLE!* You've solved my riddle, clever mortal!

As promised, you shall receive your reward. But first, provide me with your EVM wallet address where I shall send your prize...`

const (
	notStartedText     = "🔮 The sphinx awaits a challenger. Type /start to begin your trial... if you dare!"
	invalidWalletText  = "🤨 That doesn't look like a valid EVM wallet address, mortal.\nPlease provide a valid address starting with '0x'..."
	awaitingWalletText = "💰 Your prize is waiting. Send me your EVM wallet address first."
	rewardFailedText   = "⚠️ The ancient contract faltered and your reward was not sent. Send your wallet address again to retry."
	apologyText        = "🌫️ The mists cloud my vision, mortal... Try again in a moment."
	internalErrorText  = "🌫️ Something stirred in the sands and I lost my thread. Try again."
	noMoreHintsText    = "🤐 I have no riddles left for this coin. Trust your instincts, mortal!"
	noGameText         = "There is no riddle to abandon, mortal. Type /start to begin."
)

func rulesText(maxAttempts int, cooldownSeconds int) string {
	return fmt.Sprintf(`🎭 *The Ancient Rules of the MemeCoinsphinx* 🎭

1. I shall present you with cryptic riddles about a mysterious meme coin.
2. Each wrong guess costs an attempt and earns you another riddle.
3. Name the coin within *%d* attempts, and riches await you.
4. Fail, and you must wait %d seconds before challenging me again!

Commands: /start /hint /rules /stats /surrender`, maxAttempts, cooldownSeconds)
}

func hintText(n int, hint string) string {
	return fmt.Sprintf("📜 *Riddle %d:* %s", n, hint)
}

func cooldownText(seconds int) string {
	return fmt.Sprintf("🕒 Ah, the defeated one returns so soon?\nThe ancient laws decree you must wait %d more seconds before attempting another challenge.\n\nPatience is a virtue, even for those who fail... 😏", seconds)
}

func defeatCaption(subject string, cooldownSeconds int) string {
	return fmt.Sprintf("😸 *HAHAHAHA!* Another mortal falls before my superior intellect!\n\nThe meme coin I spoke of was *%s*!\nWait %d seconds before you dare challenge me again!", subject, cooldownSeconds)
}

func surrenderCaption(subject string, cooldownSeconds int) string {
	return fmt.Sprintf("🏳️ You yield? How predictable!\n\nThe meme coin I spoke of was *%s*.\nReturn in %d seconds if you regain your courage.", subject, cooldownSeconds)
}

func rewardSentText(wallet, txHash string) string {
	return fmt.Sprintf("✨ The ancient contract has been fulfilled!\nYour reward has been sent to `%s`.\nTransaction: `%s`\n\nReturn anytime with /start for another challenge!", wallet, txHash)
}

func rewardPendingText(txHash string) string {
	return fmt.Sprintf("⏳ Your reward is on its way, but the chain has not confirmed it yet.\nTransaction: `%s`\n\nSend your wallet address again to check on it.", txHash)
}

func wrongGuessFallback(attemptsRemaining int) string {
	if attemptsRemaining == 1 {
		return "Wrong, mortal! You have 1 attempt left."
	}
	return fmt.Sprintf("Wrong, mortal! You have %d attempts left.", attemptsRemaining)
}

func statsText(s domain.PlayerStats) string {
	var b strings.Builder
	b.WriteString("📊 *Your record against the sphinx*\n\n")
	fmt.Fprintf(&b, "Games played: %d\n", s.GamesPlayed)
	fmt.Fprintf(&b, "Games won: %d\n", s.GamesWon)
	fmt.Fprintf(&b, "Win rate: %.0f%%\n", s.WinRate())
	fmt.Fprintf(&b, "Current streak: %d\n", s.CurrentStreak)
	fmt.Fprintf(&b, "Best streak: %d\n", s.BestStreak)
	if s.GamesWon > 0 {
		fmt.Fprintf(&b, "Average guesses per win: %.1f\n", s.AverageWinAttempts())
	}
	return b.String()
}
