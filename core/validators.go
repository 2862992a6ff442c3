package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	trackTag  = "track"
	trackText = "unknown exam track"

	answerLangTag  = "answerlang"
	answerLangText = "unsupported answer language"

	paperLangTag  = "paperlang"
	paperLangText = "unsupported paper language"

	scoreTag = "score"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator, conf *Config) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "" {
			tag = fld.Tag.Get("form")
		}
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(trackTag, oneOfValidation(conf.Exam.TrackIDs()))
	RegisterCustomTranslation(validate, translator, trackTag, trackText)

	_ = validate.RegisterValidation(answerLangTag, oneOfValidation(conf.Exam.AnswerLanguages))
	RegisterCustomTranslation(validate, translator, answerLangTag, answerLangText)

	_ = validate.RegisterValidation(paperLangTag, oneOfValidation(conf.Exam.PaperLanguages))
	RegisterCustomTranslation(validate, translator, paperLangTag, paperLangText)

	maxScore := conf.Exam.MaxScore
	_ = validate.RegisterValidation(scoreTag, func(fl validator.FieldLevel) bool {
		score := int(fl.Field().Int())
		return score == -1 || (score >= 0 && score <= maxScore)
	})
	RegisterCustomTranslation(validate, translator, scoreTag,
		fmt.Sprintf("score must be -1 (abstain) or between 0 and %d", maxScore))

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

// oneOfValidation only allows one of items, case-insensitively.
func oneOfValidation(items []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return ContainsFold(items, fl.Field().String())
	}
}
