package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/monitor"
)

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// cleanMarketplaceName turns an API marketplace identifier into a display
// name: underscores become spaces, words are title-cased, and known acronyms
// stay uppercase.
func cleanMarketplaceName(name string) string {
	if name == "" {
		return ""
	}

	cleaned := strings.ReplaceAll(name, "_", " ")
	words := strings.Fields(cleaned)
	for i, w := range words {
		lower := strings.ToLower(w)
		switch lower {
		case "nft", "ton", "api", "id", "url", "mrkt", "tg":
			words[i] = strings.ToUpper(lower)
		default:
			words[i] = strings.ToUpper(lower[:1]) + lower[1:]
		}
	}
	return strings.Join(words, " ")
}

// formatPrice renders a TON amount without trailing zeros.
func formatPrice(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// formatOpportunity builds the MarkdownV2 alert message for one opportunity.
func formatOpportunity(item models.WatchedItem, opp models.Opportunity, now time.Time) string {
	var title, priceInfo string
	switch opp.Direction {
	case models.DirectionBuy:
		title = "📈🔔 *BUY OPPORTUNITY*"
		priceInfo = fmt.Sprintf("Lowest: %s TON \\(≤ %s TON\\)",
			escapeMarkdownV2(formatPrice(opp.TriggerPrice)), escapeMarkdownV2(formatPrice(opp.Threshold)))
	default:
		title = "📉🔔 *SELL OPPORTUNITY*"
		priceInfo = fmt.Sprintf("Highest: %s TON \\(≥ %s TON\\)",
			escapeMarkdownV2(formatPrice(opp.TriggerPrice)), escapeMarkdownV2(formatPrice(opp.Threshold)))
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "🏷️ Collection: *%s*\n", escapeMarkdownV2(item.CollectionName))
	fmt.Fprintf(&b, "📑 Sticker Pack: *%s*\n", escapeMarkdownV2(item.StickerpackName))
	fmt.Fprintf(&b, "💰 %s\n\n", priceInfo)
	b.WriteString("🏪 Available on:\n")
	for _, l := range opp.Listings {
		name := escapeMarkdownV2(cleanMarketplaceName(l.Marketplace))
		price := escapeMarkdownV2(formatPrice(l.Price))
		if l.URL != "" {
			fmt.Fprintf(&b, "• [%s](%s): %s TON\n", name, l.URL, price)
		} else {
			fmt.Fprintf(&b, "• %s: %s TON\n", name, price)
		}
	}
	fmt.Fprintf(&b, "\n⏰ %s", escapeMarkdownV2(now.Format("15:04:05")))
	return b.String()
}

// formatOpportunityPlain is the fallback rendering used when the Markdown
// send is rejected by the Telegram API.
func formatOpportunityPlain(item models.WatchedItem, opp models.Opportunity, now time.Time) string {
	var title, priceInfo string
	switch opp.Direction {
	case models.DirectionBuy:
		title = "BUY OPPORTUNITY"
		priceInfo = fmt.Sprintf("Lowest: %s TON (<= %s TON)", formatPrice(opp.TriggerPrice), formatPrice(opp.Threshold))
	default:
		title = "SELL OPPORTUNITY"
		priceInfo = fmt.Sprintf("Highest: %s TON (>= %s TON)", formatPrice(opp.TriggerPrice), formatPrice(opp.Threshold))
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Collection: %s\n", item.CollectionName)
	fmt.Fprintf(&b, "Sticker Pack: %s\n", item.StickerpackName)
	fmt.Fprintf(&b, "Price: %s\n\n", priceInfo)
	b.WriteString("Available on:\n")
	for _, l := range opp.Listings {
		fmt.Fprintf(&b, "- %s: %s TON\n", cleanMarketplaceName(l.Marketplace), formatPrice(l.Price))
	}
	fmt.Fprintf(&b, "\nTime: %s", now.Format("15:04:05"))
	return b.String()
}

// formatItemList renders a user's watched items as a numbered plain-text list.
func formatItemList(items []models.WatchedItem) string {
	if len(items) == 0 {
		return "You are not watching any sticker packs yet. Use /add to start."
	}

	var b strings.Builder
	b.WriteString("📋 Your watched sticker packs:\n\n")
	for i, item := range items {
		status := "🔔"
		if !item.Enabled {
			status = "🔕"
		}
		fmt.Fprintf(&b, "%d. %s %s / %s\n", i+1, status, item.CollectionName, item.StickerpackName)
		fmt.Fprintf(&b, "   Launch: %s TON | Buy ≤ %s TON (x%s) | Sell ≥ %s TON (x%s)\n",
			formatPrice(item.LaunchPrice),
			formatPrice(item.BuyThreshold()), formatPrice(item.BuyMultiplier),
			formatPrice(item.SellThreshold()), formatPrice(item.SellMultiplier))
	}
	return b.String()
}

// formatStatuses renders manual check results as plain text.
func formatStatuses(statuses []monitor.ItemStatus) string {
	if len(statuses) == 0 {
		return "You are not watching any sticker packs yet. Use /add to start."
	}

	var b strings.Builder
	b.WriteString("📊 Current prices:\n\n")
	for _, s := range statuses {
		if !s.Found {
			fmt.Fprintf(&b, "📦 %s / %s: not found\n", s.Item.CollectionName, s.Item.StickerpackName)
			continue
		}
		fmt.Fprintf(&b, "📦 %s / %s: lowest %s TON", s.Item.CollectionName, s.Item.StickerpackName, formatPrice(s.LowestPrice))
		for _, opp := range s.Opportunities {
			if opp.Direction == models.DirectionBuy {
				b.WriteString(" 📈 buy!")
			} else {
				b.WriteString(" 📉 sell!")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
