package publishing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/google/uuid"
	"github.com/illmade-knight/geo-location/internal/publishing"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func setupPubsub(t *testing.T, ctx context.Context, projectID, topicID string) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, projectID, option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	return srv, client
}

func TestPubsubPublisher_Publish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	const projectID = "test-project"
	topicID := "location-updates-" + uuid.NewString()

	srv, client := setupPubsub(t, ctx, projectID, topicID)
	pub := publishing.NewPubsubPublisher(client.Publisher(topicID), zerolog.New(zerolog.NewTestWriter(t)))
	t.Cleanup(pub.Stop)

	rec := locations.Record{
		ID:        uuid.New(),
		Name:      "Courier",
		Position:  locations.Position{Latitude: 48.8566, Longitude: 2.3522},
		UpdatedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}

	// Act
	err := pub.Publish(ctx, rec)

	// Assert
	require.NoError(t, err)
	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, rec.ID.String(), msgs[0].Attributes["location_id"])

	var decoded struct {
		LocationID string    `json:"location_id"`
		Name       string    `json:"name"`
		Position   []float64 `json:"position"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, rec.ID.String(), decoded.LocationID)
	assert.Equal(t, "Courier", decoded.Name)
	assert.Equal(t, []float64{48.8566, 2.3522}, decoded.Position)
}

func TestPubsubPublisher_MissingTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	_, client := setupPubsub(t, ctx, "test-project", "exists")
	pub := publishing.NewPubsubPublisher(client.Publisher("does-not-exist"), zerolog.Nop())
	t.Cleanup(pub.Stop)

	err := pub.Publish(ctx, locations.Record{ID: uuid.New()})
	require.Error(t, err)
}
