package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
	"github.com/johnquangdev/meeting-colleague/internal/infrastructure/queue"
	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func TestEmailSender(t *testing.T) {
	var got sentMail
	s := NewEmailSender(&config.NotifyConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: 2525,
		SMTPUser: "bot",
		SMTPFrom: "colleague@example.com",
	})
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got = sentMail{addr: addr, from: from, to: to, msg: string(msg)}
		assert.NotNil(t, a)
		return nil
	}
	require.True(t, s.Configured())

	err := s.Send(context.Background(), Message{
		Channel: ChannelEmail,
		To:      []string{"alice@example.com", " "},
		Subject: "Inför mötet",
		Body:    "rad ett\nrad två",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:2525", got.addr)
	assert.Equal(t, "colleague@example.com", got.from)
	assert.Equal(t, []string{"alice@example.com"}, got.to)
	assert.Contains(t, got.msg, "To: alice@example.com\r\n")
	assert.Contains(t, got.msg, "Subject: =?utf-8?q?Inf=C3=B6r_m=C3=B6tet?=\r\n")
	assert.True(t, strings.HasSuffix(got.msg, "\r\n\r\nrad ett\r\nrad två"))
}

func TestEmailSenderRequiresRecipients(t *testing.T) {
	s := NewEmailSender(&config.NotifyConfig{SMTPHost: "smtp.example.com", SMTPFrom: "a@b.c"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("unexpected send")
		return nil
	}
	assert.Error(t, s.Send(context.Background(), Message{Subject: "x"}))
}

func TestChatSender(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p chatPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		texts = append(texts, p.Text)
		if len(texts) > 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	s := NewChatSender(&config.NotifyConfig{ChatWebhookURL: srv.URL, ChatRatePerMinute: 6000})
	require.True(t, s.Configured())

	require.NoError(t, s.Send(context.Background(), Message{Subject: "Brief", Body: "klart"}))
	assert.Error(t, s.Send(context.Background(), Message{Body: "igen"}))
	assert.Equal(t, []string{"*Brief*\nklart", "igen"}, texts)
}

func TestPushSender(t *testing.T) {
	server, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go server.Start()
	require.True(t, server.ReadyForConnections(5*time.Second))
	defer func() {
		server.Shutdown()
		server.WaitForShutdown()
	}()

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("notifications.push.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	s := NewPushSender(nc, "")
	require.NoError(t, s.Send(context.Background(), Message{
		To:      []string{"alice@example.com"},
		Subject: "Påminnelse",
		Body:    "Uppföljning",
		Key:     "nudge:a-1",
	}))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "notifications.push.alice@example_com", msg.Subject)

	var p pushPayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, "Påminnelse", p.Subject)
	assert.Equal(t, "nudge:a-1", p.Key)
}

type recordingSender struct {
	channel Channel
	sent    []Message
	err     error
}

func (s *recordingSender) Channel() Channel { return s.channel }
func (s *recordingSender) Configured() bool { return true }
func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func newTestDispatcher(t *testing.T, senders ...Sender) (*Dispatcher, *queue.Manager) {
	t.Helper()
	m := queue.NewManager(queue.Options{})
	d := NewDispatcher(Options{Jobs: m, Senders: senders, OperatorEmail: "ops@example.com"})
	opts, _ := queue.DefaultQueueOptions(queue.QueueNotifications)
	require.NoError(t, m.Register(opts, d.HandleJob))
	return d, m
}

func TestDispatcherQueuesAndDelivers(t *testing.T) {
	ctx := context.Background()
	email := &recordingSender{channel: ChannelEmail}
	d, m := newTestDispatcher(t, email, NewChatSender(nil))

	assert.True(t, d.Enabled(ChannelEmail))
	assert.False(t, d.Enabled(ChannelChat))

	msg := Message{Channel: ChannelEmail, To: []string{"alice@example.com"}, Subject: "Brief", Body: "...", Key: "brief:pre:m-1"}
	require.NoError(t, d.Notify(ctx, msg))
	require.NoError(t, d.Notify(ctx, msg))

	job, err := m.Get(ctx, "notify:email:brief:pre:m-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.QueueNotifications, job.Queue)

	require.NoError(t, d.HandleJob(ctx, job))
	require.Len(t, email.sent, 1)
	assert.Equal(t, msg, email.sent[0])

	// chat has no sender, nothing is queued
	require.NoError(t, d.Notify(ctx, Message{Channel: ChannelChat, Key: "brief:pre:m-1"}))
	job, err = m.Get(ctx, "notify:chat:brief:pre:m-1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDispatcherSendErrors(t *testing.T) {
	ctx := context.Background()
	email := &recordingSender{channel: ChannelEmail, err: errors.New("421 try later")}
	d, _ := newTestDispatcher(t, email)

	payload, err := json.Marshal(Message{Channel: ChannelEmail, To: []string{"a@b.c"}, Key: "k"})
	require.NoError(t, err)
	err = d.HandleJob(ctx, &entities.Job{ID: "j", Payload: payload})
	require.Error(t, err)
	var permanent *backoff.PermanentError
	assert.False(t, errors.As(err, &permanent))

	payload, err = json.Marshal(Message{Channel: ChannelPush, To: []string{"a@b.c"}, Key: "k"})
	require.NoError(t, err)
	err = d.HandleJob(ctx, &entities.Job{ID: "j2", Payload: payload})
	assert.ErrorIs(t, err, ErrChannelDisabled)
	assert.True(t, errors.As(err, &permanent))
}

func TestAlertDeadLetter(t *testing.T) {
	ctx := context.Background()
	email := &recordingSender{channel: ChannelEmail}
	d, m := newTestDispatcher(t, email)

	dl := queue.DeadLetter{
		ID: "dlq:brief:m-1:0",
		DeadLetterJob: entities.DeadLetterJob{
			OriginalJobID: "brief:m-1",
			Queue:         queue.QueueBriefing,
			FailedReason:  "meeting metadata missing",
			RetryCount:    3,
			CanRetry:      true,
		},
	}
	require.NoError(t, d.AlertDeadLetter(ctx, dl))

	job, err := m.Get(ctx, "notify:email:dlq:dlq:brief:m-1:0")
	require.NoError(t, err)
	require.NotNil(t, job)

	msg, err := queue.DecodePayload[Message](job)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "brief:m-1")
	assert.Contains(t, msg.Body, "meeting metadata missing")

	// dead notifications are not re-notified
	dl.ID = "dlq:notify:email:x:0"
	dl.Queue = queue.QueueNotifications
	require.NoError(t, d.AlertDeadLetter(ctx, dl))
	job, err = m.Get(ctx, "notify:email:dlq:dlq:notify:email:x:0")
	require.NoError(t, err)
	assert.Nil(t, job)
}
