/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// DocTypeLPIntroduceGoods is the type of the document that introduces goods produced in the Russian Federation.
const DocTypeLPIntroduceGoods = "LP_INTRODUCE_GOODS"

// DateLayout is the layout of all date fields of the document.
const DateLayout = "2006-01-02"

// Document is the document that is sent to the document creation endpoint.
// JSON names of the fields are defined by the remote API and must not be changed.
type Document struct {
	Description    string    `json:"description" yaml:"description"`
	DocID          string    `json:"doc_id" yaml:"doc_id"`
	DocStatus      string    `json:"doc_status" yaml:"doc_status"`
	DocType        string    `json:"doc_type" yaml:"doc_type" validate:"required"`
	ImportRequest  bool      `json:"importRequest" yaml:"importRequest"`
	OwnerInn       string    `json:"owner_inn" yaml:"owner_inn"`
	ParticipantInn string    `json:"participant_inn" yaml:"participant_inn"`
	ProducerInn    string    `json:"producer_inn" yaml:"producer_inn"`
	ProductionDate string    `json:"production_date" yaml:"production_date" validate:"omitempty,datetime=2006-01-02"`
	ProductionType string    `json:"production_type" yaml:"production_type"`
	Products       []Product `json:"products" yaml:"products" validate:"required,min=1,dive"`
	RegDate        string    `json:"reg_date" yaml:"reg_date" validate:"omitempty,datetime=2006-01-02"`
	RegNumber      string    `json:"reg_number" yaml:"reg_number"`
}

// Product is a single item of the document.
type Product struct {
	CertificateDocument       string `json:"certificate_document" yaml:"certificate_document"`
	CertificateDocumentDate   string `json:"certificate_document_date" yaml:"certificate_document_date" validate:"omitempty,datetime=2006-01-02"` //nolint:lll
	CertificateDocumentNumber string `json:"certificate_document_number" yaml:"certificate_document_number"`
	OwnerInn                  string `json:"owner_inn" yaml:"owner_inn"`
	ProducerInn               string `json:"producer_inn" yaml:"producer_inn"`
	ProductionDate            string `json:"production_date" yaml:"production_date" validate:"omitempty,datetime=2006-01-02"`
	TnvedCode                 string `json:"tnved_code" yaml:"tnved_code"`
	UitCode                   string `json:"uit_code" yaml:"uit_code"`
	UituCode                  string `json:"uitu_code" yaml:"uitu_code"`
}

// Validate checks the document against its declared constraints.
// A FieldErrors value is returned if any field is invalid.
func (d *Document) Validate() error {
	if d == nil {
		return errNilDocument
	}
	if err := validate.Struct(d); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return err
		}
		fields := make(FieldErrors, 0, len(verrors))
		for _, verror := range verrors {
			fields = append(fields, FieldError{
				Field: fieldPath(verror.Namespace()),
				Err:   messageForTag(verror),
			})
		}
		return fields
	}
	return nil
}

// FieldError represents a single validation error for a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error returns a human-readable summary of all field errors.
func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

var errNilDocument = errors.New("document is nil")

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("crptapi: failed to get 'en' translator")
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// fieldPath drops the root struct name: "Document.products[0].uit_code" becomes "products[0].uit_code".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func messageForTag(verror validator.FieldError) string {
	switch verror.Tag() {
	case "required":
		return "this field is required"
	case "datetime":
		return "must be a date in " + DateLayout + " format"
	default:
		return verror.Translate(translator)
	}
}
