package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	pingErr error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Ping(context.Context) error { return f.pingErr }

func (f *fakeProducer) Close() { f.closed = true }

type fakeAdmin struct {
	topic       string
	partitions  int32
	replication int16
	err         error
}

func (f *fakeAdmin) CreateTopic(_ context.Context, partitions int32, replication int16, _ map[string]*string, topic string) (kadm.CreateTopicResponse, error) {
	f.topic, f.partitions, f.replication = topic, partitions, replication
	return kadm.CreateTopicResponse{Topic: topic, Err: f.err}, f.err
}

func TestKafkaPublisherPublish(t *testing.T) {
	fake := &fakeProducer{}
	pub := &KafkaPublisher{client: fake, topic: "verification"}

	event := New(TypeOTPVerified, "user-1", map[string]string{"company_id": "c-1"})
	require.NoError(t, pub.Publish(context.Background(), event))
	require.Len(t, fake.records, 1)

	record := fake.records[0]
	require.Equal(t, "verification", record.Topic)
	require.Equal(t, []byte("user-1"), record.Key)
	require.Equal(t, "event_type", record.Headers[0].Key)
	require.Equal(t, []byte(TypeOTPVerified), record.Headers[0].Value)

	var decoded Event
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	require.Equal(t, event.ID, decoded.ID)
	require.Equal(t, "c-1", decoded.Data["company_id"])

	pub.Close()
	require.True(t, fake.closed)
}

func TestKafkaPublisherPropagatesBrokerError(t *testing.T) {
	fake := &fakeProducer{err: errors.New("leader not available")}
	pub := &KafkaPublisher{client: fake, topic: "verification"}

	err := pub.Publish(context.Background(), New(TypeManualApproved, "user-2", nil))
	require.ErrorContains(t, err, "leader not available")
	require.ErrorContains(t, err, string(TypeManualApproved))
}

func TestNewKafkaPublisherValidatesConfig(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"})
	require.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var pub Publisher = NopPublisher{}
	require.NoError(t, pub.Publish(context.Background(), New(TypeWaitlistJoined, "w-1", nil)))
	pub.Close()
}

func TestKafkaPublisherPing(t *testing.T) {
	fake := &fakeProducer{}
	pub := &KafkaPublisher{client: fake, topic: "verification"}
	require.NoError(t, pub.Ping(context.Background()))

	fake.pingErr = errors.New("no brokers")
	require.ErrorContains(t, pub.Ping(context.Background()), "no brokers")
}

func TestKafkaPublisherEnsureTopic(t *testing.T) {
	admin := &fakeAdmin{}
	pub := &KafkaPublisher{client: &fakeProducer{}, admin: admin, topic: "verification", partitions: -1, replication: 3}
	require.NoError(t, pub.EnsureTopic(context.Background()))
	require.Equal(t, "verification", admin.topic)
	require.EqualValues(t, -1, admin.partitions)
	require.EqualValues(t, 3, admin.replication)

	admin.err = kerr.TopicAlreadyExists
	require.NoError(t, pub.EnsureTopic(context.Background()))

	admin.err = kerr.TopicAuthorizationFailed
	require.ErrorIs(t, pub.EnsureTopic(context.Background()), kerr.TopicAuthorizationFailed)

	require.Error(t, (&KafkaPublisher{client: &fakeProducer{}, topic: "verification"}).EnsureTopic(context.Background()))
}
