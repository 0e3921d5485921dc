package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestsPerChannel(t *testing.T) {
	at := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
	payload := map[string]string{"provider": "Dr. Smith"}

	reqs := Requests(Contact{Name: "Jo", Email: " jo@example.com ", Phone: "555-0100"}, TemplateConfirmation, payload, at)
	require.Len(t, reqs, 2)
	assert.Equal(t, ChannelEmail, reqs[0].Channel)
	assert.Equal(t, "jo@example.com", reqs[0].Recipient)
	assert.Equal(t, ChannelSMS, reqs[1].Channel)
	assert.Equal(t, "Jo", reqs[1].Payload["patient_name"])
	assert.Equal(t, "Dr. Smith", reqs[1].Payload["provider"])
	assert.NotEqual(t, reqs[0].ID, reqs[1].ID)

	_, touched := payload["patient_name"]
	assert.False(t, touched, "caller payload is not mutated")

	assert.Empty(t, Requests(Contact{Name: "Nobody"}, TemplateReminder, nil, at))
}

type fakePublisher struct {
	key string
	msg amqp.Publishing
	err error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func TestAMQPNotifierPublishesPersistentJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := &AMQPNotifier{ch: pub, queue: "clinic.notifications"}

	req := Requests(Contact{Name: "Jo", Email: "jo@example.com"}, TemplateReminder, map[string]string{"kind": "2h"}, time.Now())[0]
	require.NoError(t, n.Notify(context.Background(), req))

	assert.Equal(t, "clinic.notifications", pub.key)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, "reminder", pub.msg.Type)
	assert.Equal(t, req.ID.String(), pub.msg.MessageId)

	var decoded Request
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, "2h", decoded.Payload["kind"])

	pub.err = errors.New("channel closed")
	assert.Error(t, n.Notify(context.Background(), req))
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	req := Requests(Contact{Name: "Jo", Phone: "555"}, TemplateConfirmation, nil, time.Now())[0]
	require.NoError(t, n.Notify(context.Background(), req))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "sms", logs.All()[0].ContextMap()["channel"])
}
