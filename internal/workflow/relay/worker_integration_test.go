//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"giftlist/internal/platform/kafka"
	"giftlist/internal/workflow/models"
	"giftlist/internal/workflow/store"
	id "giftlist/pkg/domain"
	"giftlist/pkg/testutil/containers"
)

type RelayIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
}

func TestRelayIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RelayIntegrationSuite))
}

func (s *RelayIntegrationSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *RelayIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "workflow_outbox", "workflow_actions"))
}

func (s *RelayIntegrationSuite) TestOutboxReachesKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "workflow-" + uuid.NewString()

	producer, err := kafka.NewProducer(s.redpanda.Brokers, nil)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, topic, 1, 1))

	outbox := store.NewPostgres(s.postgres.DB)
	action := models.Action{
		ID:           id.ActionID(uuid.New()),
		DocumentType: models.DocTransfer,
		DocumentRef:  "WH/OUT/00001",
		ActionType:   models.ActionDeliveryValidated,
		Source:       models.SourceSystem,
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(outbox.Append(ctx, action))

	n, err := NewWorker(outbox, producer, topic).RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	pending, err := outbox.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	var keys []string
	fetches.EachRecord(func(r *kgo.Record) {
		keys = append(keys, string(r.Key))
	})
	s.Contains(keys, action.ID.String())
}
