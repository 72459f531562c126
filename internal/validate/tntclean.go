package validate

import (
	"regexp"
	"strings"
)

// tntMerchantMarkers matches the spelling variants the LLM emits for T&T
// Supermarket ("T&T", "T & T", "TNT" OCR misread, "T and T").
var tntMerchantMarkers = []string{"t&t", "t & t", "tnt", "t and t"}

var (
	maskedCardPattern = regexp.MustCompile(`^\*{3,}\d{4,}$`)
	longNumberPattern  = regexp.MustCompile(`\d{10,}`)
	membershipNumbers  = regexp.MustCompile(`\d{4,}`)
)

var membershipKeywords = []string{"member", "card", "会员", "卡号", "membership", "account"}
var pointsKeywords = []string{"points", "point", "积分", "pts"}

// CleanTNTItems is a post-LLM safety net (spec §C, grounded on
// tt_supermarket.py's clean_tt_receipt_items): for T&T merchants only, it
// strips $0.00 membership-card and points-transaction lines that the LLM
// sometimes emits as line items, preserving the membership number
// separately. Non-T&T results pass through untouched.
func CleanTNTItems(merchantName string, items []LlmItem) (cleaned []LlmItem, membershipNumber string) {
	if !isTNTMerchant(merchantName) {
		return items, ""
	}

	cleaned = make([]LlmItem, 0, len(items))
	for _, item := range items {
		amount := 0.0
		if item.HasLineTotal {
			amount = item.LineTotal
		}

		if amount == 0.0 && isMembershipCardLine(item.ProductName) {
			if num := extractMembershipNumber(item.ProductName); num != "" {
				membershipNumber = num
			}
			continue
		}
		if amount == 0.0 && isPointsLine(item.ProductName) {
			continue
		}
		cleaned = append(cleaned, item)
	}
	return cleaned, membershipNumber
}

func isTNTMerchant(merchantName string) bool {
	lower := strings.ToLower(merchantName)
	for _, marker := range tntMerchantMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func isMembershipCardLine(productName string) bool {
	if productName == "" {
		return false
	}
	trimmed := strings.TrimSpace(productName)
	if maskedCardPattern.MatchString(trimmed) {
		return true
	}
	if longNumberPattern.MatchString(productName) {
		return true
	}
	lower := strings.ToLower(trimmed)
	hasKeyword := false
	for _, kw := range membershipKeywords {
		if strings.Contains(lower, kw) {
			hasKeyword = true
			break
		}
	}
	return hasKeyword && membershipNumbers.MatchString(productName)
}

func isPointsLine(productName string) bool {
	if productName == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(productName))
	for _, kw := range pointsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func extractMembershipNumber(productName string) string {
	trimmed := strings.TrimSpace(productName)
	if m := maskedCardPattern.FindString(trimmed); m != "" {
		return m
	}
	matches := membershipNumbers.FindAllString(productName, -1)
	longest := ""
	for _, m := range matches {
		if len(m) > len(longest) {
			longest = m
		}
	}
	return longest
}
