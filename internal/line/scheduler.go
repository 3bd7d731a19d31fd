package line

import "math"

// MinSpawnIntervalTicks is the shortest bagging interval the scheduler allows.
const MinSpawnIntervalTicks = 10

// ticksPerSecond is the nominal tick rate the interval formula assumes.
const ticksPerSecond = 60

// SpawnIntervalTicks converts a throughput rate into ticks between items at
// speed 1: round(60 * itemWeight * 3600 / (throughput * multiplier)), never
// below MinSpawnIntervalTicks. A non-positive multiplier counts as 1.
func SpawnIntervalTicks(itemWeightKg, throughputKgPerHour, multiplier float64) int {
	if multiplier <= 0 || math.IsNaN(multiplier) {
		multiplier = 1
	}
	rate := throughputKgPerHour * multiplier
	if rate <= 0 || math.IsNaN(rate) || itemWeightKg <= 0 {
		return MinSpawnIntervalTicks
	}
	seconds := itemWeightKg * 3600 / rate
	ticks := int(math.Round(seconds * ticksPerSecond))
	if ticks < MinSpawnIntervalTicks {
		return MinSpawnIntervalTicks
	}
	return ticks
}

// Scheduler decides when the bagging machine releases a new item.
type Scheduler struct {
	ticksSinceLastSpawn int
	intervalTicks       int
	paused              bool
	spawn               func() *Item
}

// NewScheduler returns a running scheduler that calls spawn to create items.
func NewScheduler(intervalTicks int, spawn func() *Item) *Scheduler {
	s := &Scheduler{spawn: spawn}
	s.SetInterval(intervalTicks)
	return s
}

// Tick advances the counter and returns a new item when the interval,
// scaled by speed, has elapsed. Paused schedulers keep counting.
func (s *Scheduler) Tick(speed float64) *Item {
	s.ticksSinceLastSpawn++
	if s.paused || s.spawn == nil {
		return nil
	}
	threshold := float64(s.intervalTicks) / math.Max(ClampSpeed(speed), MinSpeed)
	if float64(s.ticksSinceLastSpawn) <= threshold {
		return nil
	}
	s.ticksSinceLastSpawn = 0
	return s.spawn()
}

// SetInterval changes the spawn interval without touching the counter.
func (s *Scheduler) SetInterval(ticks int) {
	if ticks < MinSpawnIntervalTicks {
		ticks = MinSpawnIntervalTicks
	}
	s.intervalTicks = ticks
}

func (s *Scheduler) Interval() int            { return s.intervalTicks }
func (s *Scheduler) TicksSinceLastSpawn() int { return s.ticksSinceLastSpawn }
func (s *Scheduler) Paused() bool             { return s.paused }

// Pause stops spawning. The counter is left as is.
func (s *Scheduler) Pause() { s.paused = true }

// Resume restarts spawning. The counter is left as is.
func (s *Scheduler) Resume() { s.paused = false }

// Reset zeroes the counter.
func (s *Scheduler) Reset() { s.ticksSinceLastSpawn = 0 }
