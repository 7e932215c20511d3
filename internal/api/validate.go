package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterTranslation(notBlankTag, translator,
		func(ut.Translator) error { return nil },
		func(_ ut.Translator, fe validator.FieldError) string {
			return fe.Field() + " cannot be blank"
		})
}

// validationError carries per-field messages for a 400 response.
type validationError struct {
	fields map[string]string
	tags   map[string]string
	order  []string
}

// has reports whether field failed on one of the given tags.
func (e *validationError) has(field string, tags ...string) bool {
	failed, ok := e.tags[field]
	if !ok {
		return false
	}
	for _, t := range tags {
		if t == failed {
			return true
		}
	}
	return false
}

func (e *validationError) Error() string {
	msgs := make([]string, 0, len(e.order))
	for _, f := range e.order {
		msgs = append(msgs, e.fields[f])
	}
	return strings.Join(msgs, "; ")
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &validationError{fields: map[string]string{}, tags: map[string]string{}}
	for _, fe := range verrs {
		if _, seen := ve.fields[fe.Field()]; !seen {
			ve.order = append(ve.order, fe.Field())
		}
		ve.fields[fe.Field()] = fe.Translate(translator)
		ve.tags[fe.Field()] = fe.Tag()
	}
	return ve
}

var errInvalidBody = errors.New("invalid request body")

// writeBadRequest renders errors from decodeAndValidate.
func writeBadRequest(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  ve.Error(),
			"fields": ve.fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
