// Package prompt flattens a conversation into the single text prompt sent
// to completion-style Llama 2 chat models.
//
// The layout is:
//
//	<preamble>
//	User: <content>\n\n
//	Assistant: <content>\n\n
//	...
//	User: <new message>\n\nAssistant:
//
// The trailing "Assistant:" is left open so the model continues from there.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/xllama/pkg/conversation"
	"github.com/pkg/errors"
)

const DefaultPreamble = "You are a helpful assistant. " +
	"Do not respond as 'User'. Respond only once as 'Assistant'.\n\n"

// PreambleData is the data available to a preamble template.
type PreambleData struct {
	Model   string
	ModelID string
}

type Compiler struct {
	preamble string
}

type CompilerOption func(*Compiler) error

// WithPreamble sets a literal preamble.
func WithPreamble(preamble string) CompilerOption {
	return func(c *Compiler) error {
		c.preamble = preamble
		return nil
	}
}

// WithPreambleTemplate renders tmpl once, with sprig functions available,
// and uses the result as the preamble.
func WithPreambleTemplate(tmpl string, data PreambleData) CompilerOption {
	return func(c *Compiler) error {
		rendered, err := RenderPreamble(tmpl, data)
		if err != nil {
			return err
		}
		c.preamble = rendered
		return nil
	}
}

func NewCompiler(options ...CompilerOption) (*Compiler, error) {
	ret := &Compiler{
		preamble: DefaultPreamble,
	}
	for _, o := range options {
		if err := o(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (c *Compiler) Preamble() string {
	return c.preamble
}

// Compile builds the prompt for newUserMessage given the turns that came
// before it. It has no side effects.
func (c *Compiler) Compile(history []conversation.Turn, newUserMessage string) string {
	b := strings.Builder{}
	b.WriteString(c.preamble)
	for _, t := range history {
		b.WriteString(t.Role.Label())
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(conversation.RoleUser.Label())
	b.WriteString(": ")
	b.WriteString(newUserMessage)
	b.WriteString("\n\n")
	b.WriteString(conversation.RoleAssistant.Label())
	b.WriteString(":")
	return b.String()
}

var defaultCompiler = &Compiler{preamble: DefaultPreamble}

// Compile uses the default preamble.
func Compile(history []conversation.Turn, newUserMessage string) string {
	return defaultCompiler.Compile(history, newUserMessage)
}

func RenderPreamble(tmpl string, data PreambleData) (string, error) {
	t, err := template.New("preamble").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "could not parse preamble template")
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render preamble template")
	}
	return buf.String(), nil
}
