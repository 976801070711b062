package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeCredentials reads credentials from a JSON or form-encoded body and
// checks their structure. Any failure is a *RequestError.
func DecodeCredentials(w http.ResponseWriter, r *http.Request, maxBody int64) (Credentials, error) {
	var creds Credentials
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return creds, &RequestError{Detail: "Malformed form body", Err: err}
		}
		creds.Email = r.PostFormValue("email")
		creds.Password = r.PostFormValue("password")
	default:
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&creds); err != nil {
			return creds, &RequestError{Detail: describeDecodeError(err), Err: err}
		}
	}
	creds.Email = strings.TrimSpace(creds.Email)

	if err := validate.Struct(creds); err != nil {
		return creds, &RequestError{Detail: fieldErrors(err), Err: err}
	}
	return creds, nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		return fmt.Sprintf("Field '%s' must be a %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &maxErr):
		return "Request body too large"
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	}
	return "Malformed JSON body"
}

func fieldErrors(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"non_field_errors": {err.Error()}}
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "This field is required."
		case "email":
			msg = "Enter a valid email address."
		case "max":
			msg = fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		default:
			msg = fmt.Sprintf("Failed validation on '%s'.", fe.Tag())
		}
		out[fe.Field()] = append(out[fe.Field()], msg)
	}
	return out
}
