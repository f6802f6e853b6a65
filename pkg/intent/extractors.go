package intent

import (
	"regexp"
	"strings"

	"github.com/awoulbe/chatflow/pkg/domain"
)

// Entity types produced by the built-in extractors.
const (
	EntityEmail  = "email"
	EntityPhone  = "phone"
	EntityAmount = "amount"
	EntityDate   = "date"
)

// Built-in extractor confidence constants.
const (
	emailConfidence  = 0.95
	phoneConfidence  = 0.9
	amountConfidence = 0.85
	dateConfidence   = 0.8
)

var (
	emailEntity = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Cameroonian mobile numbers, optionally prefixed with +237, with
	// optional spacing or dashes between digit pairs.
	phoneEntity = regexp.MustCompile(`(?:\+?237[\s\-]?)?6(?:[\s\-]?\d){8}`)
	// Amounts with a currency suffix: "5000 FCFA", "1500XAF", "2000 F".
	amountEntity = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s?(FCFA|XAF|F)\b`)
	dateEntity   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
)

// extractBuiltins runs the four fixed pattern extractors against the raw
// message. They run on the original text, not the normalized one, since
// normalization strips the very characters (@, /, +) these patterns need.
func extractBuiltins(message string) []domain.Entity {
	var entities []domain.Entity

	for _, loc := range emailEntity.FindAllStringIndex(message, -1) {
		entities = append(entities, domain.Entity{
			Type:       EntityEmail,
			Value:      strings.ToLower(message[loc[0]:loc[1]]),
			Confidence: emailConfidence,
			Position:   loc[0],
		})
	}

	for _, loc := range phoneEntity.FindAllStringIndex(message, -1) {
		raw := message[loc[0]:loc[1]]
		entities = append(entities, domain.Entity{
			Type:       EntityPhone,
			Value:      strings.NewReplacer(" ", "", "-", "").Replace(raw),
			Confidence: phoneConfidence,
			Position:   loc[0],
		})
	}

	for _, m := range amountEntity.FindAllStringSubmatchIndex(message, -1) {
		value := message[m[2]:m[3]]
		currency := strings.ToUpper(message[m[4]:m[5]])
		entities = append(entities, domain.Entity{
			Type:       EntityAmount,
			Value:      strings.ReplaceAll(value, ",", "."),
			Confidence: amountConfidence,
			Position:   m[0],
			Metadata:   map[string]any{"currency": currency},
		})
	}

	for _, loc := range dateEntity.FindAllStringIndex(message, -1) {
		entities = append(entities, domain.Entity{
			Type:       EntityDate,
			Value:      message[loc[0]:loc[1]],
			Confidence: dateConfidence,
			Position:   loc[0],
		})
	}

	return entities
}
