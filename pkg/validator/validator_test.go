package validator_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	pkgvalidator "github.com/ghuser/secondchance/pkg/validator"
)

type sampleStruct struct {
	EventID  string `validate:"required,uuid"`
	Category string `validate:"required,min=1,max=10"`
	Contact  string `validate:"omitempty,email"`
}

func TestValidate_valid(t *testing.T) {
	s := sampleStruct{
		EventID:  "550e8400-e29b-41d4-a716-446655440000",
		Category: "Books",
	}
	if err := pkgvalidator.Validate(&s); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestValidate_missingRequired(t *testing.T) {
	s := sampleStruct{}
	if err := pkgvalidator.Validate(&s); err == nil {
		t.Fatal("expected validation error for empty struct")
	}
}

func TestFormatValidationErrors_required(t *testing.T) {
	s := sampleStruct{}
	err := pkgvalidator.Validate(&s)
	m := pkgvalidator.FormatValidationErrors(err)
	if m["EventID"] != "This field is required" {
		t.Errorf("unexpected EventID message: %q", m["EventID"])
	}
	if m["Category"] != "This field is required" {
		t.Errorf("unexpected Category message: %q", m["Category"])
	}
}

func TestFormatValidationErrors_uuid(t *testing.T) {
	s := sampleStruct{EventID: "not-a-uuid", Category: "ok"}
	err := pkgvalidator.Validate(&s)
	m := pkgvalidator.FormatValidationErrors(err)
	if m["EventID"] != "Must be a valid UUID" {
		t.Errorf("unexpected EventID message: %q", m["EventID"])
	}
}

func TestFormatValidationErrors_min(t *testing.T) {
	s := sampleStruct{EventID: "550e8400-e29b-41d4-a716-446655440000", Category: ""}
	err := pkgvalidator.Validate(&s)
	m := pkgvalidator.FormatValidationErrors(err)
	// empty string fails "required" before "min"
	if _, ok := m["Category"]; !ok {
		t.Error("expected Category validation error")
	}
}

func TestFormatValidationErrors_max(t *testing.T) {
	s := sampleStruct{EventID: "550e8400-e29b-41d4-a716-446655440000", Category: "12345678901"} // 11 chars > max=10
	err := pkgvalidator.Validate(&s)
	m := pkgvalidator.FormatValidationErrors(err)
	if m["Category"] != "Maximum length is 10" {
		t.Errorf("unexpected Category message: %q", m["Category"])
	}
}

func TestFormatValidationErrors_nonValidationError(t *testing.T) {
	m := pkgvalidator.FormatValidationErrors(http.ErrNoCookie)
	if len(m) != 0 {
		t.Errorf("expected empty map for non-validation error, got %v", m)
	}
}

// --- ValidateRequest ---

type itemReq struct {
	EventID   string `json:"event_id"  validate:"required,uuid"`
	Condition string `json:"condition" validate:"required,min=1,max=255"`
}

func TestValidateRequest_urlencodedForm(t *testing.T) {
	form := url.Values{"event_id": {"550e8400-e29b-41d4-a716-446655440000"}, "condition": {"Used"}}
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	req, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if !ok {
		t.Fatalf("expected ok=true, got false. Response: %s", w.Body.String())
	}
	if req.Condition != "Used" {
		t.Errorf("unexpected Condition: %q", req.Condition)
	}
}

func TestFormFields_multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("category", "chair")
	_ = mw.WriteField("age_days", "730")
	fw, _ := mw.CreateFormFile("file", "a.png")
	_, _ = fw.Write([]byte("png"))
	_ = mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	fields, err := pkgvalidator.FormFields(r)
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}
	if fields["category"] != "chair" || fields["age_days"] != "730" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if _, ok := fields["file"]; ok {
		t.Fatal("file parts must not appear as fields")
	}
}

func TestValidateRequest_bodyTooLarge(t *testing.T) {
	body := `{"event_id":"550e8400-e29b-41d4-a716-446655440000","condition":"Like new"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.Body = http.MaxBytesReader(w, r.Body, 8)

	_, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if ok {
		t.Fatal("expected ok=false for oversized body")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestValidateRequest_valid(t *testing.T) {
	body := `{"event_id":"550e8400-e29b-41d4-a716-446655440000","condition":"Like new"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	req, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if !ok {
		t.Fatalf("expected ok=true, got false. Response: %s", w.Body.String())
	}
	if req.Condition != "Like new" {
		t.Errorf("unexpected Condition: %q", req.Condition)
	}
}

func TestValidateRequest_invalidJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{bad json"))
	w := httptest.NewRecorder()

	_, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if ok {
		t.Fatal("expected ok=false for malformed JSON")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid JSON") {
		t.Errorf("expected 'Invalid JSON' in body, got: %s", w.Body.String())
	}
}

func TestValidateRequest_missingField(t *testing.T) {
	body := `{"condition":"Used"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	_, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if ok {
		t.Fatal("expected ok=false for missing event_id")
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Validation failed") {
		t.Errorf("expected 'Validation failed' in body, got: %s", w.Body.String())
	}
}

func TestValidateRequest_invalidUUID(t *testing.T) {
	body := `{"event_id":"not-uuid","condition":"Used"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	_, ok := pkgvalidator.ValidateRequest[itemReq](w, r)
	if ok {
		t.Fatal("expected ok=false for invalid UUID")
	}
	if !strings.Contains(w.Body.String(), "UUID") {
		t.Errorf("expected UUID error in body, got: %s", w.Body.String())
	}
}

// --- Number ---

type ageReq struct {
	AgeDays pkgvalidator.Number `json:"age_days" validate:"required,numeric,gte=0"`
}

func TestNumber_formAndJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		want        float64
	}{
		{"json number", "application/json", `{"age_days":730}`, http.StatusOK, 730},
		{"json zero", "application/json", `{"age_days":0}`, http.StatusOK, 0},
		{"form string", "application/x-www-form-urlencoded", "age_days=73", http.StatusOK, 73},
		{"form word", "application/x-www-form-urlencoded", "age_days=old", http.StatusUnprocessableEntity, 0},
		{"form missing", "application/x-www-form-urlencoded", "category=Games", http.StatusUnprocessableEntity, 0},
		{"json negative", "application/json", `{"age_days":-1}`, http.StatusUnprocessableEntity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			req, ok := pkgvalidator.ValidateRequest[ageReq](w, r)
			if tt.wantStatus != http.StatusOK {
				if ok || w.Code != tt.wantStatus {
					t.Fatalf("ok = %v, status = %d; want %d", ok, w.Code, tt.wantStatus)
				}
				if !strings.Contains(w.Body.String(), `"age_days"`) {
					t.Errorf("expected age_days in fields, got %s", w.Body.String())
				}
				return
			}
			if !ok {
				t.Fatalf("expected ok, got %d: %s", w.Code, w.Body.String())
			}
			if got, ok := req.AgeDays.Float(); !ok || got != tt.want {
				t.Errorf("AgeDays = %v (ok %v), want %v", got, ok, tt.want)
			}
		})
	}
}

func TestNewNumber(t *testing.T) {
	if _, ok := pkgvalidator.NewNumber("  ").Float(); ok {
		t.Error("blank input must be absent")
	}
	if f, ok := pkgvalidator.NewNumber(" 2.5 ").Float(); !ok || f != 2.5 {
		t.Errorf("Float = %v, %v", f, ok)
	}
}
