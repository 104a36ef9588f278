package constants

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

type ContextKey string

const (
	TxKey     ContextKey = "tx"
	PoolKey   ContextKey = "pool"
	LoggerKey ContextKey = "logger"
)

var (
	Validate   = validator.New(validator.WithRequiredStructEnabled())
	Translator = newTranslator(Validate)
)

// newTranslator registers English messages for the built-in validation tags.
func newTranslator(v *validator.Validate) ut.Translator {
	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator(english.Locale())
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	return trans
}
