package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"

	"github.com/clinicops/clinicops/internal/platform/webhook"
	"github.com/clinicops/clinicops/internal/platform/worker"
)

func sampleEvent() EventCreated {
	return EventCreated{
		EventID:        uuid.MustParse("7b1f5f3e-9a43-4b8e-8f0e-2d5c1e9a0b11"),
		DepartmentID:   uuid.MustParse("0c6b2a8e-1111-4c2d-9e3f-123456789abc"),
		DepartmentName: "Hematology",
		Name:           "Analyzer calibration",
		Schedule:       "one_time 2026-11-02 09:00-10:00",
		AssigneeName:   "Dana Ortiz",
		AssigneeEmail:  "dana@example.com",
		AssigneePhone:  "+15551230000",
	}
}

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateEventAssigned, map[string]string{
		"event_name":    "Analyzer calibration",
		"assignee_name": "Dana",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "New event assigned: Analyzer calibration" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hello Dana") {
		t.Errorf("unexpected body %q", body)
	}
	if !strings.Contains(body, "{{event_id}}") {
		t.Error("missing keys should be left as-is")
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestDeliver_AllChannels(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hooks, err := webhook.NewDeliverer([]string{srv.URL}, "secret")
	if err != nil {
		t.Fatalf("NewDeliverer: %v", err)
	}
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	d := NewDispatcher(nil, zerolog.Nop(), WithWebhooks(hooks), WithEmail(email), WithSMS(sms))

	report := d.Deliver(context.Background(), sampleEvent())
	if !report.OK() || len(report) != 3 {
		t.Fatalf("expected 3 successful channels, got %v", report)
	}

	var envelope struct {
		Type    string         `json:"type"`
		Payload webhookPayload `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode webhook body: %v", err)
	}
	if envelope.Type != EventTypeCreated || envelope.Payload.Name != "Analyzer calibration" {
		t.Errorf("unexpected webhook envelope %+v", envelope)
	}

	calls := email.Calls()
	if len(calls) != 1 || calls[0].To != "dana@example.com" {
		t.Fatalf("unexpected email calls %+v", calls)
	}
	if !strings.Contains(calls[0].Body, "Hematology") {
		t.Errorf("email body missing department: %q", calls[0].Body)
	}
	if got := sms.Calls(); len(got) != 1 || got[0].To != "+15551230000" {
		t.Fatalf("unexpected sms calls %+v", got)
	}
}

func TestDeliver_FailureIsReportedNotReturned(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "relay refused"}
	sms := &MockSMSSender{}
	d := NewDispatcher(nil, zerolog.Nop(), WithEmail(email), WithSMS(sms))

	report := d.Deliver(context.Background(), sampleEvent())
	if report.OK() {
		t.Fatal("expected report to show failure")
	}
	if report[ChannelEmail] {
		t.Error("expected email=false")
	}
	if !report[ChannelSMS] {
		t.Error("sms should still be attempted and succeed")
	}
	if _, ok := report[ChannelWebhook]; ok {
		t.Error("webhook channel was not configured")
	}
}

func TestDeliver_SkipsMissingContact(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	d := NewDispatcher(nil, zerolog.Nop(), WithEmail(email), WithSMS(sms))

	n := sampleEvent()
	n.AssigneeEmail = ""
	n.AssigneePhone = ""
	report := d.Deliver(context.Background(), n)

	if len(report) != 0 || len(email.Calls()) != 0 || len(sms.Calls()) != 0 {
		t.Errorf("expected nothing attempted, got report %v", report)
	}
}

func TestDispatchEventCreated_RunsOnPool(t *testing.T) {
	pool, err := worker.New(context.Background(), "notify", 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("worker.New: %v", err)
	}
	defer pool.Shutdown(time.Second)

	sms := &signalSMS{done: make(chan SMSCall, 1)}
	d := NewDispatcher(pool, zerolog.Nop(), WithSMS(sms))

	ctx, cancel := context.WithCancel(context.Background())
	if !d.DispatchEventCreated(ctx, sampleEvent()) {
		t.Fatal("expected dispatch to be scheduled")
	}
	// The request finishing must not cancel delivery.
	cancel()

	select {
	case call := <-sms.done:
		if !strings.Contains(call.Body, "Analyzer calibration") {
			t.Errorf("unexpected sms body %q", call.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestDispatchEventCreated_SubmitFailure(t *testing.T) {
	d := NewDispatcher(failingPool{}, zerolog.Nop())
	if d.DispatchEventCreated(context.Background(), sampleEvent()) {
		t.Fatal("expected false when the pool rejects work")
	}
}

type signalSMS struct {
	once sync.Once
	done chan SMSCall
}

func (s *signalSMS) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.once.Do(func() { s.done <- SMSCall{To: to, Body: body} })
	return nil
}

type failingPool struct{}

func (failingPool) SubmitDetached(worker.Task) error { return worker.ErrPoolClosed }

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPSender(t *testing.T) {
	dialer := &fakeDialer{}
	s := &SMTPSender{dialer: dialer, from: "ops@clinic.example"}

	if err := s.SendEmail(context.Background(), "dana@example.com", "Hi", "Body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dialer.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(dialer.sent))
	}
	m := dialer.sent[0]
	if got := m.GetHeader("To"); len(got) != 1 || got[0] != "dana@example.com" {
		t.Errorf("To = %v", got)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "ops@clinic.example" {
		t.Errorf("From = %v", got)
	}

	dialer.err = errors.New("535 auth failed")
	if err := s.SendEmail(context.Background(), "dana@example.com", "Hi", "Body"); err == nil {
		t.Fatal("expected dialer error to surface")
	}
}

type fakeTwilio struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = p
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioSender(t *testing.T) {
	api := &fakeTwilio{}
	s := &TwilioSender{api: api, from: "+15550000000"}

	if err := s.SendSMS(context.Background(), "+15551230000", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.params == nil || *api.params.To != "+15551230000" || *api.params.From != "+15550000000" || *api.params.Body != "hello" {
		t.Errorf("unexpected params %+v", api.params)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SendSMS(ctx, "+1", "x"); err == nil {
		t.Fatal("expected cancelled context to abort")
	}
}
