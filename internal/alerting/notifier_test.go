package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleEvent(direction Direction) Event {
	return Event{
		Direction:  direction,
		Instrument: "AAPL",
		Price:      decimal.NewFromInt(25),
		Currency:   "USD",
		LowerBound: decimal.NewFromInt(10),
		UpperBound: decimal.NewFromInt(20),
		ObservedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleEvent(Sell)); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "[SELL] AAPL") {
		t.Fatalf("text 应包含方向与标的: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleEvent(Buy))
	var sinkErr *SinkError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("ok=false 应返回 *SinkError, 实际 %v", err)
	}
	if sinkErr.Channel != "telegram" {
		t.Fatalf("unexpected channel %q", sinkErr.Channel)
	}
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func emailOptions() EmailOptions {
	return EmailOptions{
		FromName:      "Quote Alert",
		FromAddress:   "bot@example.com",
		ToAddress:     "jane@example.com",
		RecipientName: "Jane",
	}
}

func TestEmailNotifierSubjects(t *testing.T) {
	sender := &fakeSender{}
	notifier := newEmailNotifier(emailOptions(), sender, testLogger())

	if err := notifier.Notify(context.Background(), sampleEvent(Buy)); err != nil {
		t.Fatalf("Notify 不应报错: %v", err)
	}
	if err := notifier.Notify(context.Background(), sampleEvent(Sell)); err != nil {
		t.Fatalf("Notify 不应报错: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("应发送 2 封邮件, 实际 %d", len(sender.sent))
	}

	buySubject := sender.sent[0].GetGenHeader(mail.HeaderSubject)
	sellSubject := sender.sent[1].GetGenHeader(mail.HeaderSubject)
	if len(buySubject) != 1 || buySubject[0] != "Buy a stock!" {
		t.Fatalf("unexpected buy subject %v", buySubject)
	}
	if len(sellSubject) != 1 || sellSubject[0] != "Sell a stock!" {
		t.Fatalf("unexpected sell subject %v", sellSubject)
	}

	to := sender.sent[0].GetToString()
	if len(to) != 1 || !strings.Contains(to[0], "jane@example.com") {
		t.Fatalf("unexpected recipients %v", to)
	}
}

func TestEmailNotifierSendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	notifier := newEmailNotifier(emailOptions(), sender, testLogger())

	err := notifier.Notify(context.Background(), sampleEvent(Sell))
	var sinkErr *SinkError
	if !errors.As(err, &sinkErr) || sinkErr.Channel != "email" {
		t.Fatalf("发送失败应返回 email SinkError, 实际 %v", err)
	}
}

func TestEmailNotifierInvalidAddress(t *testing.T) {
	opts := emailOptions()
	opts.ToAddress = "not an address"
	sender := &fakeSender{}
	notifier := newEmailNotifier(opts, sender, testLogger())

	if err := notifier.Notify(context.Background(), sampleEvent(Sell)); err == nil {
		t.Fatal("非法收件人地址应报错")
	}
	if len(sender.sent) != 0 {
		t.Fatal("invalid message must not be sent")
	}
}

func TestDefaultTemplates(t *testing.T) {
	buy := LoadTemplate("some-invalid-file-path", Buy, testLogger())
	sell := LoadTemplate("some-invalid-file-path", Sell, testLogger())

	if buy == "" || sell == "" {
		t.Fatal("默认模板不应为空")
	}
	if buy == sell {
		t.Fatal("buy 与 sell 模板应不同")
	}
	if LoadTemplate("", Buy, testLogger()) != buy {
		t.Fatal("empty path should yield the default buy template")
	}
}

func TestLoadTemplateFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buy.html")
	if err := os.WriteFile(path, []byte("<p>%%STOCK%%</p>"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if got := LoadTemplate(path, Buy, testLogger()); got != "<p>%%STOCK%%</p>" {
		t.Fatalf("应读取自定义模板, 实际 %q", got)
	}
}

func TestApplySubstitutions(t *testing.T) {
	const tpl = "%%NAME%% %%STOCK%% %%UPPERBOUND%% %%LOWERBOUND%% %%PRICE%%"

	got := ApplySubstitutions(tpl, "John Doe", sampleEvent(Sell))
	want := "John Doe AAPL 20.000 USD 10.000 USD 25.000 USD"
	if got != want {
		t.Fatalf("替换结果不正确:\n got  %q\n want %q", got, want)
	}
}

type recordingNotifier struct {
	name   string
	err    error
	events []Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingNotifier) Channel() string { return r.name }

func TestMultiDeliversToAll(t *testing.T) {
	failing := &recordingNotifier{name: "email", err: &SinkError{Channel: "email", Err: errors.New("down")}}
	ok := &recordingNotifier{name: "telegram"}
	multi := NewMulti(failing, nil, ok)

	err := multi.Notify(context.Background(), sampleEvent(Buy))
	if err == nil {
		t.Fatal("任一通道失败应返回错误")
	}
	if len(failing.events) != 1 || len(ok.events) != 1 {
		t.Fatal("失败通道不应阻止其他通道投递")
	}
	if got := strings.Join(multi.Channels(), ","); got != "email,telegram" {
		t.Fatalf("unexpected channels %q", got)
	}
	if multi.Len() != 2 {
		t.Fatalf("nil notifier should be skipped, len=%d", multi.Len())
	}
}
