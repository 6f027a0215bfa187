package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/aarondl/null/v8"
)

type scheduleBody struct {
	Type     string      `json:"type" validate:"required"`
	FromTime null.String `json:"from_time" validate:"omitempty,clock"`
	Duration null.Int    `json:"recurring_duration" validate:"omitempty,gte=1"`
}

type requestBody struct {
	Name     string       `json:"event_name" validate:"required,max=255"`
	Schedule scheduleBody `json:"schedule"`
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	body := requestBody{
		Name: "Calibration",
		Schedule: scheduleBody{
			Type:     "one_time",
			FromTime: null.StringFrom("09:30"),
			Duration: null.IntFrom(2),
		},
	}
	if err := v.Validate(body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NullFieldsSkipped(t *testing.T) {
	v := New()
	body := requestBody{Name: "Calibration", Schedule: scheduleBody{Type: "recurring"}}
	if err := v.Validate(body); err != nil {
		t.Fatalf("null fields should be skipped by omitempty: %v", err)
	}
}

func TestValidate_InvalidClock(t *testing.T) {
	v := New()
	for _, bad := range []string{"9:30", "24:00", "12:60", "noon"} {
		body := requestBody{Name: "x", Schedule: scheduleBody{Type: "one_time", FromTime: null.StringFrom(bad)}}
		err := v.Validate(body)
		if err == nil {
			t.Errorf("expected %q to fail clock validation", bad)
			continue
		}
		fields := FieldErrors(err)
		if len(fields) != 1 || fields[0].Field != "schedule.from_time" || fields[0].Rule != "clock" {
			t.Errorf("unexpected field errors for %q: %+v", bad, fields)
		}
	}
}

func TestValidate_NullIntRule(t *testing.T) {
	v := New()
	tests := []struct {
		name     string
		duration null.Int
		wantErr  bool
	}{
		{"null skipped", null.Int{}, false},
		{"present zero", null.IntFrom(0), true},
		{"negative", null.IntFrom(-1), true},
		{"one", null.IntFrom(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := requestBody{Name: "x", Schedule: scheduleBody{Type: "recurring", Duration: tt.duration}}
			fields := FieldErrors(v.Validate(body))
			if !tt.wantErr {
				if len(fields) != 0 {
					t.Fatalf("unexpected errors: %+v", fields)
				}
				return
			}
			if len(fields) != 1 || fields[0].Field != "schedule.recurring_duration" || fields[0].Rule != "gte" {
				t.Fatalf("expected recurring_duration gte error, got %+v", fields)
			}
		})
	}
}

func TestFieldErrors_MissingRequired(t *testing.T) {
	v := New()
	fields := FieldErrors(v.Validate(requestBody{}))
	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Rule
	}
	if got["event_name"] != "required" {
		t.Errorf("expected event_name required, got %+v", fields)
	}
	if got["schedule.type"] != "required" {
		t.Errorf("expected schedule.type required, got %+v", fields)
	}
}

func TestFieldErrors_NonValidatorError(t *testing.T) {
	if FieldErrors(errors.New("boom")) != nil {
		t.Error("expected nil for non-validator errors")
	}
	if FieldErrors(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestBind(t *testing.T) {
	e := echo.New()
	e.Validator = New()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"event_name":"Calibration","schedule":{"type":"one_time"}}`, 0},
		{"malformed", `{"event_name":`, http.StatusBadRequest},
		{"missing name", `{"schedule":{"type":"one_time"}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := e.NewContext(req, httptest.NewRecorder())

			var body requestBody
			err := Bind(c, &body)
			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tt.wantCode {
				t.Fatalf("expected %d, got %v", tt.wantCode, err)
			}
		})
	}
}
