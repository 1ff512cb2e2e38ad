package seed

import (
	"math/rand/v2"
	"sync"
	"time"

	activity "factory-monitor/internal/activity/domain"
)

const (
	sampleInterval    = 5 * time.Minute
	minStateDuration  = 15 * time.Minute
	stateDurationSpan = 30 * time.Minute

	stationMoveProbability  = 0.3
	productCountProbability = 0.15
)

// DefaultWorkers is the demo roster.
var DefaultWorkers = []activity.Entity{
	{Role: activity.RoleWorker, ID: "W1", DisplayName: "John Smith", Kind: "worker"},
	{Role: activity.RoleWorker, ID: "W2", DisplayName: "Sarah Johnson", Kind: "worker"},
	{Role: activity.RoleWorker, ID: "W3", DisplayName: "Mike Williams", Kind: "worker"},
	{Role: activity.RoleWorker, ID: "W4", DisplayName: "Emily Brown", Kind: "worker"},
	{Role: activity.RoleWorker, ID: "W5", DisplayName: "David Davis", Kind: "worker"},
	{Role: activity.RoleWorker, ID: "W6", DisplayName: "Lisa Anderson", Kind: "worker"},
}

// DefaultWorkstations is the demo floor.
var DefaultWorkstations = []activity.Entity{
	{Role: activity.RoleWorkstation, ID: "S1", DisplayName: "Assembly Line 1", Kind: "assembly"},
	{Role: activity.RoleWorkstation, ID: "S2", DisplayName: "Assembly Line 2", Kind: "assembly"},
	{Role: activity.RoleWorkstation, ID: "S3", DisplayName: "Quality Check Station", Kind: "quality"},
	{Role: activity.RoleWorkstation, ID: "S4", DisplayName: "Packaging Station 1", Kind: "packaging"},
	{Role: activity.RoleWorkstation, ID: "S5", DisplayName: "Packaging Station 2", Kind: "packaging"},
	{Role: activity.RoleWorkstation, ID: "S6", DisplayName: "Testing Station", Kind: "testing"},
}

// Generator produces plausible activity streams: one sample every five minutes per worker,
// a state change every 15 to 45 minutes, occasional station moves and product counts while working.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator constructs a generator. The same seed yields the same stream.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns fingerprinted events in [start, end) ordered by timestamp. IDs are not assigned.
func (g *Generator) Generate(workers, stations []activity.Entity, start, end time.Time) []activity.Event {
	if len(workers) == 0 || len(stations) == 0 || !end.After(start) {
		return nil
	}
	start = activity.NormalizeTimestamp(start)

	g.mu.Lock()
	defer g.mu.Unlock()

	var events []activity.Event
	for _, worker := range workers {
		events = append(events, g.generateWorker(worker.ID, stations, start, end)...)
	}
	activitySort(events)
	return events
}

func (g *Generator) generateWorker(workerID string, stations []activity.Entity, start, end time.Time) []activity.Event {
	var (
		events     []activity.Event
		station    = g.pick(stations)
		state      = activity.EventWorking
		nextChange = start.Add(g.stateDuration())
	)
	for ts := start; ts.Before(end); ts = ts.Add(sampleInterval) {
		if ts.After(nextChange) {
			state = g.nextState()
			nextChange = ts.Add(g.stateDuration())
			if g.rng.Float64() < stationMoveProbability {
				station = g.pick(stations)
			}
		}

		if state == activity.EventWorking && g.rng.Float64() < productCountProbability {
			events = append(events, activity.Event{
				Timestamp:     ts,
				WorkerID:      workerID,
				WorkstationID: station.ID,
				Type:          activity.EventProductCount,
				Confidence:    0.90 + g.rng.Float64()*0.10,
				Count:         1 + g.rng.Int64N(3),
			}.WithFingerprint())
		}
		events = append(events, activity.Event{
			Timestamp:     ts,
			WorkerID:      workerID,
			WorkstationID: station.ID,
			Type:          state,
			Confidence:    0.85 + g.rng.Float64()*0.15,
			Count:         1,
		}.WithFingerprint())
	}
	return events
}

// nextState favours working two to one.
func (g *Generator) nextState() activity.EventType {
	states := [...]activity.EventType{activity.EventWorking, activity.EventIdle, activity.EventWorking}
	return states[g.rng.IntN(len(states))]
}

func (g *Generator) stateDuration() time.Duration {
	return minStateDuration + time.Duration(g.rng.Int64N(int64(stateDurationSpan)))
}

func (g *Generator) pick(stations []activity.Entity) activity.Entity {
	return stations[g.rng.IntN(len(stations))]
}
