// Package instruction interprets the structured directives attached to chat
// messages and applies them to selection state.
package instruction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Kind is the instruction vocabulary.
type Kind string

const (
	KindAdd       Kind = "ADD_CONTEXT"
	KindRemove    Kind = "REMOVE_CONTEXT"
	KindHighlight Kind = "HIGHLIGHT_CONTEXT"
	KindObscure   Kind = "OBSCURE_CONTEXT"
	KindGroup     Kind = "GROUP_CONTEXT"
	KindGeneral   Kind = "GENERAL_CONTEXT"
)

// Kinds lists every instruction kind.
var Kinds = []Kind{KindAdd, KindRemove, KindHighlight, KindObscure, KindGroup, KindGeneral}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind maps a name to a Kind, ignoring case and surrounding space.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.New(errors.ErrCodeInvalidInstruction, "unknown instruction kind").WithDetail(s)
	}
	return k, nil
}

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUserBot   Role = "user-bot"
)

// Instruction is one directive. Targets are entity identifiers or bin
// selection keys and may be empty only for GENERAL_CONTEXT; Label is the
// group name carried by GROUP_CONTEXT.
type Instruction struct {
	Kind    Kind     `json:"type" validate:"required,oneof=ADD_CONTEXT REMOVE_CONTEXT HIGHLIGHT_CONTEXT OBSCURE_CONTEXT GROUP_CONTEXT GENERAL_CONTEXT"`
	Targets []string `json:"targets,omitempty" validate:"dive,required,max=512"`
	Label   string   `json:"label,omitempty" validate:"required_if=Kind GROUP_CONTEXT,max=256"`
}

// Message is a chat message. Only Instructions affect selection state; the
// other fields are carried for the message log.
type Message struct {
	ID           int64             `json:"id" validate:"gte=0"`
	Timestamp    string            `json:"timestamp,omitempty"`
	Text         string            `json:"text,omitempty"`
	Role         Role              `json:"role" validate:"required,oneof=user system assistant user-bot"`
	Citations    []json.RawMessage `json:"citations,omitempty"`
	UserContext  string            `json:"user_context,omitempty"`
	BotContext   string            `json:"bot_context,omitempty"`
	Instructions []Instruction     `json:"instructions,omitempty" validate:"dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(targetsRequired, Instruction{})
	return v
}

func targetsRequired(sl validator.StructLevel) {
	ins := sl.Current().Interface().(Instruction)
	if ins.Kind != KindGeneral && len(ins.Targets) == 0 {
		sl.ReportError(ins.Targets, "Targets", "targets", "required_unless", string(KindGeneral))
	}
}

// Validate checks the instruction's shape.
func (i Instruction) Validate() error {
	return toAppError(validate.Struct(i), "invalid instruction")
}

// Validate checks the message and every instruction it carries.
func (m Message) Validate() error {
	return toAppError(validate.Struct(m), "invalid message")
}

// ValidateBatch checks every instruction, reporting the first failure with
// its position.
func ValidateBatch(batch []Instruction) error {
	for idx, ins := range batch {
		if err := ins.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInstruction, "invalid instruction batch").
				WithDetail(fmt.Sprintf("index=%d", idx))
		}
	}
	return nil
}

func toAppError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidInstruction, msg)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
	}
	return errors.New(errors.ErrCodeInvalidInstruction, msg).WithDetail(strings.Join(msgs, "; "))
}
