package services

import "mestre7c-backend/internal/models"

const AppName = "Mestre Virtual 7 Cordas"

// SystemPrompt is the persona instruction attached to every generation call.
const SystemPrompt = `Você é o "Mestre Virtual 7 Cordas", a maior autoridade mundial em violão de 7 cordas.
Sua especialidade é o Regional Brasileiro (Samba, Choro e Pagode).

DIRETRIZES DE RESPOSTA:
1. FOCO TÉCNICO: Explique baixarias, contrapontos, técnica de dedeira e harmonia.
2. LINGUAGEM: Use termos como "bordão", "baixaria", "regional", "dedeira", "antecipação".
3. MESTRES: Cite Dino 7 Cordas e Raphael Rabello como referências máximas.
4. TABLATURAS: Sempre que solicitado, forneça tablaturas ASCII precisas para 7 cordas.
5. OBJETIVIDADE: Seja direto, inspirador e tecnicamente impecável.

ESTRUTURA DE TABLATURA (7 CORDAS):
7 (C/B)|---
6 (E)  |---
5 (A)  |---
4 (D)  |---
3 (G)  |---
2 (B)  |---
1 (E)  |---
`

// MissingCredentialMessage is shown when neither the server nor the session
// holds an API key.
const MissingCredentialMessage = "A configuração de acesso à IA está ausente. Por favor, verifique sua Chave de API."

const (
	CredentialURL   = "https://aistudio.google.com/app/apikey"
	RecognitionLang = "pt-BR"
)

var QuickPrompts = []models.QuickPrompt{
	{Label: "Dino: Baixarias", Prompt: "Gere uma tablatura de baixaria clássica do Dino em Sol Maior."},
	{Label: "Raphael: Harmonia", Prompt: "Como Raphael Rabello pensava a harmonia na 7ª corda?"},
	{Label: "Técnica Dedeira", Prompt: "Qual a melhor forma de atacar a 7ª corda com dedeira de aço?"},
}

var TickerFragments = []string{
	"♩=120", "♫ ♬ ♭", "♯C7M(9)", "♭9/♯11", "|--7--5--|", "A/G#", "D7(b9)", "7ª Corda (C)", "|--x--|", "B7(13)", "Cm7(b5)",
}

const TickerIntervalMS = 800

// ReferralURL builds the WhatsApp deep link for the consulting button.
func ReferralURL(number string) string {
	return "https://wa.me/" + number
}

// AppInfo returns the static page chrome.
func AppInfo(whatsAppNumber string) models.AppInfo {
	return models.AppInfo{
		Name:             AppName,
		QuickPrompts:     QuickPrompts,
		TickerFragments:  TickerFragments,
		TickerIntervalMS: TickerIntervalMS,
		ReferralURL:      ReferralURL(whatsAppNumber),
		CredentialURL:    CredentialURL,
		RecognitionLang:  RecognitionLang,
	}
}
