package intent

import "github.com/awoulbe/chatflow/pkg/domain"

// DefaultIntents returns the stock intent set for the guided interactions
// shipped with the engine: greetings, onboarding, product purchase and the
// common banking operations. Callers typically extend or replace this set.
func DefaultIntents() []domain.IntentDefinition {
	return []domain.IntentDefinition{
		{
			Name:     "greeting",
			Category: "conversation",
			KeywordGroups: [][]string{
				{"bonjour"}, {"bonsoir"}, {"salut"}, {"hello"}, {"hi"},
			},
			Examples: []string{"bonjour", "bonsoir", "salut", "hello"},
			Priority: 10,
		},
		{
			Name:     "onboarding",
			Category: "account",
			KeywordGroups: [][]string{
				{"creer", "compte"}, {"ouvrir", "compte"}, {"inscription"}, {"inscrire"},
			},
			Examples:   []string{"je veux creer un compte", "ouvrir un compte"},
			WorkflowID: "onboarding",
			Priority:   5,
		},
		{
			Name:     "purchase",
			Category: "commerce",
			KeywordGroups: [][]string{
				{"acheter"}, {"commander"}, {"achat"}, {"commande"},
			},
			Patterns:   []string{`je (veux|voudrais) (acheter|commander)`},
			WorkflowID: "purchase",
			Priority:   5,
		},
		{
			Name:     "balance",
			Category: "banking",
			KeywordGroups: [][]string{
				{"solde"}, {"balance"}, {"combien", "compte"},
			},
			Examples:   []string{"quel est mon solde"},
			WorkflowID: "balance",
			Priority:   6,
		},
		{
			Name:     "transfer",
			Category: "banking",
			KeywordGroups: [][]string{
				{"transfert"}, {"envoyer", "argent"}, {"virement"},
			},
			Patterns:         []string{`(envoyer|transferer) \d+`},
			WorkflowID:       "transfer",
			Priority:         6,
			RequiredEntities: []string{EntityAmount},
		},
		{
			Name:     "cancel",
			Category: "conversation",
			KeywordGroups: [][]string{
				{"annuler"}, {"stop"}, {"cancel"},
			},
			Examples: []string{"annuler", "stop"},
			Priority: 8,
		},
		{
			Name:     "help",
			Category: "conversation",
			KeywordGroups: [][]string{
				{"aide"}, {"help"}, {"menu"},
			},
			Examples: []string{"aide", "help", "menu"},
			Priority: 4,
		},
	}
}
