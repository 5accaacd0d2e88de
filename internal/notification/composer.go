package notification

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"community-notifications/internal/common/validation"
)

type ComposerConfig struct {
	Salutation   string // one %s, receives the upper-cased name
	FallbackName string
	Closing      string
}

func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		Salutation:   "Dear %s,",
		FallbackName: "Resident",
		Closing:      "Regards,\nCommunity Management",
	}
}

// Composer personalizes a template per recipient. It has no side effects.
type Composer struct {
	cfg ComposerConfig
}

func NewComposer(cfg ComposerConfig) *Composer {
	def := DefaultComposerConfig()
	if cfg.Salutation == "" {
		cfg.Salutation = def.Salutation
	}
	if cfg.FallbackName == "" {
		cfg.FallbackName = def.FallbackName
	}
	if cfg.Closing == "" {
		cfg.Closing = def.Closing
	}
	return &Composer{cfg: cfg}
}

// ValidateTemplate checks title, body, link and image URL. Length violations are
// ErrTemplateTooLong, anything else ErrTemplateInvalid.
func (c *Composer) ValidateTemplate(tmpl MessageTemplate) error {
	violations, err := validation.Struct(tmpl)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTemplateInvalid, err)
	}
	if len(violations) == 0 {
		return nil
	}

	for _, v := range violations {
		if v.Tag == "max" {
			return fmt.Errorf("%w: %s", ErrTemplateTooLong, v.Message)
		}
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Message
	}
	return fmt.Errorf("%w: %s", ErrTemplateInvalid, strings.Join(msgs, "; "))
}

// Compose returns one message per recipient, in recipient order.
func (c *Composer) Compose(tmpl MessageTemplate, recipients []Recipient) ([]RenderedMessage, error) {
	if err := c.ValidateTemplate(tmpl); err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrEmptySelection
	}

	out := make([]RenderedMessage, 0, len(recipients))
	for _, rec := range recipients {
		name := c.nameFor(rec)
		body := strings.ReplaceAll(tmpl.Body, RecipientNamePlaceholder, name)
		if n := utf8.RuneCountInString(body); n > MaxBodyLength {
			return nil, fmt.Errorf("%w: body for %s is %d characters after personalization",
				ErrTemplateTooLong, rec.ID, n)
		}

		out = append(out, RenderedMessage{
			RecipientID: rec.ID,
			DisplayName: name,
			Email:       rec.Email,
			Title:       tmpl.Title,
			Body:        c.envelope(name, body),
		})
	}
	return out, nil
}

func (c *Composer) nameFor(rec Recipient) string {
	if name := strings.TrimSpace(rec.DisplayName); name != "" {
		return name
	}
	return c.cfg.FallbackName
}

func (c *Composer) envelope(name, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, c.cfg.Salutation, strings.ToUpper(name))
	b.WriteString("\n\n")
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(c.cfg.Closing)
	return b.String()
}
