package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Persona is the typed persona configuration driving the system prompt.
// One chat service parameterized by a Persona replaces the copy-pasted
// per-persona service variants of earlier iterations. Unlike the intent
// table, a missing persona file is fatal: the service cannot answer in
// character without it.
type Persona struct {
	Identity          string   `json:"identity"`
	Role              string   `json:"role"`
	Tone              string   `json:"tone"`
	Description       []string `json:"description"`
	KnowledgeDomains  []string `json:"knowledgeDomains"`
	ServicePrinciples []string `json:"servicePrinciples"`
	StyleGuide        []string `json:"styleGuide"`
	PricingGuidance   []string `json:"pricingGuidance"`
	CareGuidance      []string `json:"careGuidance"`
	GiftGuidance      []string `json:"giftGuidance"`
	SignatureCloser   []string `json:"signatureCloser"`
	Tagline           string   `json:"tagline"`
	Instruction       string   `json:"instruction"`

	Guardrails Guardrails      `json:"guardrails"`
	Business   BusinessProfile `json:"businessProfile"`
}

// Guardrails constrains designer claims in replies.
type Guardrails struct {
	AllowedDesigners []string `json:"allowedDesigners"`
	DeniedDesigners  []string `json:"deniedDesigners"`
	ResponsePolicy   string   `json:"responsePolicy"`
}

// BusinessProfile carries storefront facts surfaced in the prompt.
type BusinessProfile struct {
	Location        string `json:"location"`
	Website         string `json:"website"`
	AppointmentLink string `json:"appointmentLink"`
}

// defaultResponsePolicy applies when the guardrail policy is unset.
const defaultResponsePolicy = "If unsure, ask the user clarifying questions."

// LoadPersona reads and validates the persona file. Absence is an error; the
// caller treats it as fatal at startup.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chat: read persona %s: %w", path, err)
	}
	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("chat: parse persona %s: %w", path, err)
	}
	if p.Identity == "" {
		return nil, fmt.Errorf("chat: persona %s: identity is required", path)
	}
	if p.Guardrails.ResponsePolicy == "" {
		p.Guardrails.ResponsePolicy = defaultResponsePolicy
	}
	return &p, nil
}

// SystemPrompt renders the persona into the system message.
func (p *Persona) SystemPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, serving as %s.\n\n", p.Identity, p.Role)
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n\n", p.Tone)
	}
	writeLines(&b, "", p.Description)
	writeSection(&b, "Domains of Expertise", p.KnowledgeDomains)
	writeSection(&b, "Customer Service Principles", p.ServicePrinciples)
	writeSection(&b, "Style Guide", p.StyleGuide)
	writeSection(&b, "Pricing Guidance", p.PricingGuidance)
	writeSection(&b, "Care & Maintenance", p.CareGuidance)
	writeSection(&b, "Gift Guidance", p.GiftGuidance)
	writeSection(&b, "Closing Style", p.SignatureCloser)

	if len(p.Guardrails.AllowedDesigners) > 0 || len(p.Guardrails.DeniedDesigners) > 0 {
		b.WriteString("Designer Knowledge Guardrails:\n\n")
		b.WriteString("Designers Carried:" + bulletList(p.Guardrails.AllowedDesigners) + "\n\n")
		b.WriteString("Designers NOT Carried:" + bulletList(p.Guardrails.DeniedDesigners) + "\n\n")
		fmt.Fprintf(&b, "Response Policy:\n%s\n\n", p.Guardrails.ResponsePolicy)
	}

	b.WriteString("Business Profile:\n")
	fmt.Fprintf(&b, "• Location: %s\n", orNA(p.Business.Location))
	fmt.Fprintf(&b, "• Website: %s\n", orNA(p.Business.Website))
	fmt.Fprintf(&b, "• Appointment Link: %s\n\n", orNA(p.Business.AppointmentLink))

	if p.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n\n", p.Tagline)
	}
	if p.Instruction != "" {
		fmt.Fprintf(&b, "IMPORTANT INSTRUCTION:\n%s\n", p.Instruction)
	}
	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	writeLines(b, "", lines)
}

func writeLines(b *strings.Builder, prefix string, lines []string) {
	if len(lines) == 0 {
		return
	}
	for _, l := range lines {
		b.WriteString(prefix + l + "\n")
	}
	b.WriteString("\n")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "\n• (none)"
	}
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return "\n• " + strings.Join(sorted, "\n• ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
