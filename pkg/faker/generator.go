package faker

import (
	"fmt"
	"log"
	"math/rand" // Using weak random for test data generation only
	"time"

	"github.com/fleetdata/blobsink/pkg/kafka"
)

const (
	maxAssets     = 50     // Maximum number of test assets to generate
	maxSpeedKmh   = 120.0  // Upper bound for generated speed values
	latSpread     = 8.0    // Degrees of latitude jitter around the base point
	lonSpread     = 12.0   // Degrees of longitude jitter around the base point
	baseLatitude  = 40.0   // Base latitude for generated positions
	baseLongitude = -100.0 // Base longitude for generated positions
)

var recordTypes = []string{"telematics_heartbeat", "hos_event", "asset_status"}

var assetIDs []string

func init() { //nolint:gochecknoinits // Required for test data initialization
	for i := 1; i <= maxAssets; i++ {
		assetIDs = append(assetIDs, fmt.Sprintf("asset-%d", i))
	}
}

func randomAssetID() string {
	return assetIDs[rand.Intn(len(assetIDs))] //nolint:gosec // Using weak random for test data generation only
}

// Heartbeat builds one synthetic telemetry record for a random tenant from
// the given list. The required type and timestamp fields are always set.
func Heartbeat(tenants []string) map[string]any {
	now := time.Now().UTC()
	tenant := tenants[rand.Intn(len(tenants))]          //nolint:gosec // test data
	recType := recordTypes[rand.Intn(len(recordTypes))] //nolint:gosec // test data

	return map[string]any{
		"tenant_id": tenant,
		"type":      recType,
		"timestamp": now.Format(time.RFC3339),
		"asset_id":  randomAssetID(),
		"event":     "ping",
		"location": map[string]any{
			"lat": baseLatitude + rand.Float64()*latSpread,  //nolint:gosec // test data
			"lon": baseLongitude - rand.Float64()*lonSpread, //nolint:gosec // test data
		},
		"speed_kmh": rand.Float64() * maxSpeedKmh, //nolint:gosec // test data
	}
}

// PublishHeartbeat generates and publishes one record, keyed by tenant so
// a tenant's records stay ordered within a partition.
func PublishHeartbeat(p *kafka.Producer, topic string, tenants []string) {
	rec := Heartbeat(tenants)
	key := []byte(rec["tenant_id"].(string))
	if err := p.Publish(topic, key, rec); err != nil {
		log.Printf("[Faker] publish failed: %v", err)
	}
}
