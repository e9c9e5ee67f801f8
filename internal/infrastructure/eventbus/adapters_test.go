package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnquangdev/meeting-colleague/internal/domain/entities"
)

func TestRedisLogBoundedAndShared(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := NewRedisLog(client, 2, time.Hour, nil)
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, log.Append(ctx, entities.NewMeetingEvent("m-1",
			entities.TranscriptSegment{MeetingID: "m-1", Speaker: "Alice", Text: text}, time.Now())))
	}

	// a second instance reading the same list
	other := NewRedisLog(client, 2, time.Hour, nil)
	events, err := other.Events(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "b", events[0].Payload.(entities.TranscriptSegment).Text)
	assert.Equal(t, "c", events[1].Payload.(entities.TranscriptSegment).Text)

	assert.Equal(t, time.Hour, mr.TTL("bus:log:m-1"))
	mr.FastForward(2 * time.Hour)

	events, err = other.Events(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRedisLogSkipsGarbage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := NewRedisLog(client, 10, 0, nil)
	_, err := mr.RPush("bus:log:m-1", "not json")
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, entities.NewMeetingEvent("m-1", entities.Commitment{Owner: "Alice"}, time.Now())))

	events, err := log.Events(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entities.EventCommitment, events[0].Type)
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSMirrorPublishesEnvelope(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("meetings.m-1.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	mirror, err := DialNATSMirror(server.ClientURL(), "meetings")
	require.NoError(t, err)

	b := New(Options{Mirror: mirror})
	event := entities.NewMeetingEvent("m-1", entities.Commitment{Owner: "Alice", Statement: "jag tar det"}, time.Now())
	require.NoError(t, b.Publish(context.Background(), event))
	require.NoError(t, b.Close())

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "meetings.m-1.commitment", msg.Subject)

	decoded, err := entities.DecodeEvent(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "Alice", decoded.Payload.(entities.Commitment).Owner)
}

func TestNATSMirrorSubjectEscapesMeetingID(t *testing.T) {
	m := NewNATSMirror(nil, "")
	event := entities.MeetingEvent{MeetingID: "team.weekly 1", Type: entities.EventSpeechSegment}
	assert.Equal(t, "meetings.team_weekly_1.speech.segment", m.Subject(event))
}
